package alarm

import (
	"log/slog"
	"sync"

	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/tartampluch/go-lunar-birthday/internal/engine"
)

// Scheduler turns birthday records into platform timers.
// It keeps no timer state of its own; the platform's table is rebuilt from the
// records and the clock on every Reconcile.
type Scheduler struct {
	Platform Platform
	Planner  *engine.Planner
	Clock    engine.Clock

	// FormatMessage localizes payload messages. Nil uses the English fallback.
	FormatMessage engine.MessageFormatter

	mu sync.Mutex
	// known holds the ids seen by the last Reconcile so that records deleted
	// since then are swept as well.
	known map[int64]struct{}
}

// NewScheduler wires a scheduler with an empty id history.
func NewScheduler(platform Platform, planner *engine.Planner, clock engine.Clock) *Scheduler {
	return &Scheduler{
		Platform: platform,
		Planner:  planner,
		Clock:    clock,
		known:    make(map[int64]struct{}),
	}
}

// ScheduleAll registers one timer per planned trigger of record and returns how
// many were registered. Without exact permission the inexact primitive is used.
func (s *Scheduler) ScheduleAll(record engine.BirthdayRecord) int {
	triggers := s.Planner.Plan(record, s.Clock.Now())
	if len(triggers) == 0 {
		return 0
	}

	exact := s.Platform.CanScheduleExact()
	if !exact {
		slog.Warn(config.MsgScheduledInex,
			config.LogKeyComponent, config.CompAlarm,
			config.LogKeyRecordID, record.ID)
	}

	for _, trig := range triggers {
		payload := PayloadOf(trig, s.FormatMessage)
		if exact {
			s.Platform.SetExact(trig.RequestCode, trig.FireAt, payload)
		} else {
			s.Platform.SetInexact(trig.RequestCode, trig.FireAt, payload)
		}

		slog.Debug(config.MsgScheduled,
			config.LogKeyComponent, config.CompAlarm,
			config.LogKeyRecordID, record.ID,
			config.LogKeyCode, trig.RequestCode,
			config.LogKeyFireAt, trig.FireAt,
			config.LogKeyExact, exact)
	}
	return len(triggers)
}

// CancelAll cancels every request code the record's id could ever have used,
// across the whole offset and hour domain rather than its current sets.
func (s *Scheduler) CancelAll(record engine.BirthdayRecord) {
	s.cancelID(record.ID)
}

func (s *Scheduler) cancelID(id int64) {
	codes := engine.SweepCodes(id, s.Planner.SweepBound())
	for _, code := range codes {
		s.Platform.Cancel(code)
	}
	slog.Debug(config.MsgCancelSweep,
		config.LogKeyComponent, config.CompAlarm,
		config.LogKeyRecordID, id,
		config.LogKeyCount, len(codes))
}

// Reconcile cancels then reschedules every record. Ids reconciled last time
// but absent from records are swept too. Calling it again with the same
// records and clock leaves the timer set unchanged.
func (s *Scheduler) Reconcile(records []engine.BirthdayRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.known == nil {
		s.known = make(map[int64]struct{})
	}

	current := make(map[int64]struct{}, len(records))
	for _, r := range records {
		current[r.ID] = struct{}{}
	}

	// Every sweep runs before any registration: sweeps of nearby ids share
	// codes, so an interleaved sweep would erase a neighbour's fresh timers.
	for id := range s.known {
		if _, ok := current[id]; !ok {
			s.cancelID(id)
		}
	}
	for _, r := range records {
		s.CancelAll(r)
	}

	total := 0
	for _, r := range records {
		total += s.ScheduleAll(r)
	}
	s.known = current

	slog.Info(config.MsgReconciled,
		config.LogKeyComponent, config.CompAlarm,
		config.LogKeyRecords, len(records),
		config.LogKeyTriggers, total)
	return total
}
