// Package store persists the birthday records and keeps the reminder timers
// in sync with them.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/tartampluch/go-lunar-birthday/internal/engine"
)

// Reconciler rebuilds the timer set from the full record list.
type Reconciler interface {
	Reconcile(records []engine.BirthdayRecord) int
}

// ReminderStore owns the record list. Every mutation ends in Save, which
// persists the list and reconciles the timers in one step.
type ReminderStore struct {
	prefs      fyne.Preferences
	reconciler Reconciler
	clock      engine.Clock

	// MaxOffsetDays is the sweep bound used for id collision checks.
	MaxOffsetDays int

	mu sync.Mutex
}

// New creates a store over the application preferences.
func New(prefs fyne.Preferences, reconciler Reconciler, clock engine.Clock) *ReminderStore {
	return &ReminderStore{
		prefs:         prefs,
		reconciler:    reconciler,
		clock:         clock,
		MaxOffsetDays: config.MaxOffsetDays,
	}
}

// storedRecord is the persisted layout of one record.
type storedRecord struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	LunarMonth    int    `json:"lunarMonth"`
	LunarDay      int    `json:"lunarDay"`
	RemindOffsets []int  `json:"remindOffsets"`
	RemindList    []int  `json:"remindList,omitempty"`
	RemindHours   []int  `json:"remindHours"`
}

// Load returns the stored records. Unreadable data yields an empty list and a
// single unusable record is dropped without affecting the others.
func (s *ReminderStore) Load() []engine.BirthdayRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Reconcile loads the records and rebuilds the timers from them under the
// store lock, so a concurrent mutation cannot slip between the two steps.
func (s *ReminderStore) Reconcile() []engine.BirthdayRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	if s.reconciler != nil {
		s.reconciler.Reconcile(records)
	}
	return records
}

func (s *ReminderStore) load() []engine.BirthdayRecord {
	log := slog.With(config.LogKeyComponent, config.CompStore)

	raw := s.prefs.String(config.StoreKey)
	if strings.TrimSpace(raw) == "" {
		return []engine.BirthdayRecord{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Warn(config.MsgStoreCorrupt, config.LogKeyError, fmt.Errorf("%s: %w", config.ErrStoreDecode, err))
		return []engine.BirthdayRecord{}
	}

	records := make([]engine.BirthdayRecord, 0, len(items))
	for _, item := range items {
		var sr storedRecord
		if err := json.Unmarshal(item, &sr); err != nil {
			log.Warn(config.MsgStoreDropRecord, config.LogKeyError, err)
			continue
		}

		record := sr.toRecord()
		if !record.ValidLunarDate() {
			log.Warn(config.MsgStoreDropRecord,
				config.LogKeyRecordID, record.ID,
				config.LogKeyMonth, record.LunarMonth,
				config.LogKeyDay, record.LunarDay)
			continue
		}
		records = append(records, record)
	}

	log.Debug(config.MsgStoreLoaded, config.LogKeyRecords, len(records))
	return records
}

func (sr storedRecord) toRecord() engine.BirthdayRecord {
	offsets := sr.RemindOffsets
	if offsets == nil {
		offsets = sr.RemindList
	}
	return engine.BirthdayRecord{
		ID:            sr.ID,
		Name:          sr.Name,
		LunarMonth:    sr.LunarMonth,
		LunarDay:      sr.LunarDay,
		RemindOffsets: offsets,
		RemindHours:   sr.RemindHours,
	}.WithDefaults()
}

func fromRecord(r engine.BirthdayRecord) storedRecord {
	r = r.WithDefaults()
	return storedRecord{
		ID:            r.ID,
		Name:          r.Name,
		LunarMonth:    r.LunarMonth,
		LunarDay:      r.LunarDay,
		RemindOffsets: r.RemindOffsets,
		RemindHours:   r.RemindHours,
	}
}

// Save persists records and reconciles the timers against them.
// It is the only path that changes stored state.
func (s *ReminderStore) Save(records []engine.BirthdayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(records)
}

func (s *ReminderStore) save(records []engine.BirthdayRecord) error {
	out := make([]storedRecord, 0, len(records))
	for _, r := range records {
		out = append(out, fromRecord(r))
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreEncode, err)
	}
	s.prefs.SetString(config.StoreKey, string(data))

	triggers := 0
	if s.reconciler != nil {
		triggers = s.reconciler.Reconcile(records)
	}

	slog.Info(config.MsgStoreSaved,
		config.LogKeyComponent, config.CompStore,
		config.LogKeyRecords, len(records),
		config.LogKeyTriggers, triggers)
	return nil
}

// Add validates record, assigns it a fresh id and saves the extended list.
// The saved record is returned.
func (s *ReminderStore) Add(record engine.BirthdayRecord) (engine.BirthdayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validate(&record); err != nil {
		return engine.BirthdayRecord{}, err
	}

	records := s.load()
	id, err := s.freeID(s.clock.Now().UnixMilli(), records)
	if err != nil {
		return engine.BirthdayRecord{}, err
	}
	record.ID = id
	record = record.WithDefaults()

	if err := s.save(append(records, record)); err != nil {
		return engine.BirthdayRecord{}, err
	}
	return record, nil
}

// Update replaces the record with the same id.
func (s *ReminderStore) Update(record engine.BirthdayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validate(&record); err != nil {
		return err
	}

	records := s.load()
	for i := range records {
		if records[i].ID == record.ID {
			records[i] = record.WithDefaults()
			return s.save(records)
		}
	}
	return fmt.Errorf("%s: %d", config.ErrRecordNotFound, record.ID)
}

// Delete removes the record with the given id. Its timers are swept by the
// reconcile that follows.
func (s *ReminderStore) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	kept := records[:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return fmt.Errorf("%s: %d", config.ErrRecordNotFound, id)
	}
	return s.save(kept)
}

// Merge adds imported records whose (name, month, day) is not stored yet and
// returns how many were added. Invalid entries are skipped.
func (s *ReminderStore) Merge(imported []engine.BirthdayRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := slog.With(config.LogKeyComponent, config.CompStore)
	records := s.load()

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[identity(r)] = struct{}{}
	}

	next := s.clock.Now().UnixMilli()
	added := 0
	for _, r := range imported {
		if err := validate(&r); err != nil {
			log.Warn(config.MsgStoreDropRecord, config.LogKeyName, r.Name, config.LogKeyError, err)
			continue
		}
		key := identity(r)
		if _, dup := seen[key]; dup {
			log.Debug(config.MsgImportDuplicate, config.LogKeyName, r.Name)
			continue
		}

		id, err := s.freeID(next, records)
		if err != nil {
			return added, err
		}
		r.ID = id
		next = id + 1

		records = append(records, r.WithDefaults())
		seen[key] = struct{}{}
		added++
	}

	if added == 0 {
		return 0, nil
	}
	return added, s.save(records)
}

// freeID returns the first id from candidate upwards whose request codes do
// not overlap those of any existing record.
func (s *ReminderStore) freeID(candidate int64, records []engine.BirthdayRecord) (int64, error) {
	for i := 0; i < config.MaxIDBumps; i++ {
		id := candidate + int64(i)
		if !s.overlapsAny(id, records) {
			if i > 0 {
				slog.Info(config.MsgIDBumped,
					config.LogKeyComponent, config.CompStore,
					config.LogKeyOldID, candidate,
					config.LogKeyNewID, id)
			}
			return id, nil
		}
	}
	return 0, errors.New(config.ErrIDExhausted)
}

func (s *ReminderStore) overlapsAny(id int64, records []engine.BirthdayRecord) bool {
	for _, r := range records {
		if engine.CodesOverlap(id, r.ID, s.MaxOffsetDays) {
			return true
		}
	}
	return false
}

// validate trims the name and checks the lunar date range.
func validate(r *engine.BirthdayRecord) error {
	r.Name = strings.TrimSpace(r.Name)
	switch {
	case r.Name == "":
		return errors.New(config.ErrNameRequired)
	case r.LunarMonth < config.MinLunarMonth || r.LunarMonth > config.MaxLunarMonth:
		return errors.New(config.ErrMonthRange)
	case r.LunarDay < config.MinLunarDay || r.LunarDay > config.MaxLunarDay:
		return errors.New(config.ErrDayRange)
	}
	return nil
}

func identity(r engine.BirthdayRecord) string {
	return fmt.Sprintf("%s|%d|%d", strings.ToLower(strings.TrimSpace(r.Name)), r.LunarMonth, r.LunarDay)
}
