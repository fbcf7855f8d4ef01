package engine

import (
	"slices"
	"time"

	"github.com/tartampluch/go-lunar-birthday/internal/config"
)

// BirthdayRecord is one person whose birthday is kept as a lunar (month, day).
// It is the only persisted entity; everything else is derived from it.
type BirthdayRecord struct {
	// ID is the creation timestamp in milliseconds and the record's identity.
	ID int64

	Name string

	LunarMonth int // 1..12
	LunarDay   int // 1..30, clamped by the provider for 29-day months

	// RemindOffsets are the days before the occurrence at which to remind.
	RemindOffsets []int

	// RemindHours are the hours of day (0..23) at which reminders fire.
	RemindHours []int
}

// WithDefaults returns a copy whose nil reminder sets are replaced by the defaults.
// An explicitly empty set stays empty.
func (r BirthdayRecord) WithDefaults() BirthdayRecord {
	if r.RemindOffsets == nil {
		r.RemindOffsets = []int{config.DefaultRemindOffset}
	}
	if r.RemindHours == nil {
		r.RemindHours = []int{config.DefaultRemindHour}
	}
	return r
}

// ValidLunarDate reports whether month and day are inside the storable range.
func (r BirthdayRecord) ValidLunarDate() bool {
	return r.LunarMonth >= config.MinLunarMonth && r.LunarMonth <= config.MaxLunarMonth &&
		r.LunarDay >= config.MinLunarDay && r.LunarDay <= config.MaxLunarDay
}

// ReminderTrigger is one concrete future notification derived from a record.
// Triggers are recomputed on every reconcile and never persisted.
type ReminderTrigger struct {
	Record      BirthdayRecord
	Occurrence  time.Time // solar date of the birthday, at midnight
	OffsetDays  int
	Hour        int
	FireAt      time.Time
	RequestCode int
}

// SortTriggers orders triggers by fire instant, then by request code.
func SortTriggers(triggers []ReminderTrigger) {
	slices.SortFunc(triggers, func(a, b ReminderTrigger) int {
		if c := a.FireAt.Compare(b.FireAt); c != 0 {
			return c
		}
		return a.RequestCode - b.RequestCode
	})
}

// distinct returns the values of in without duplicates, keeping first-seen order.
func distinct(in []int) []int {
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
