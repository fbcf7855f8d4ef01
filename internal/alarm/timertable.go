package alarm

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/tartampluch/go-lunar-birthday/internal/engine"
)

// Entry is a snapshot of one registered timer.
type Entry struct {
	Code    int
	At      time.Time
	Exact   bool
	Payload Payload
}

// TimerTable is the in-process Platform. Timers are kept in a map keyed by
// request code and fired by a loop polling the wall clock, so a timer whose
// instant passed while the machine slept fires on the first tick after resume.
type TimerTable struct {
	Clock engine.Clock

	// OnFire receives the payload of each due timer. It runs on the Run
	// goroutine, outside the table lock.
	OnFire func(Payload)

	Resolution time.Duration // polling period
	Window     time.Duration // alignment of inexact timers

	mu           sync.Mutex
	entries      map[int]Entry
	exactAllowed bool

	notifyCh chan struct{}
}

// NewTimerTable creates an empty table with exact timers allowed.
func NewTimerTable(clock engine.Clock, onFire func(Payload)) *TimerTable {
	return &TimerTable{
		Clock:        clock,
		OnFire:       onFire,
		Resolution:   config.TimerResolution,
		Window:       config.InexactWindow,
		entries:      make(map[int]Entry),
		exactAllowed: config.DefaultExactAlarms,
		notifyCh:     make(chan struct{}, 1),
	}
}

// SetExactAllowed toggles the exact-timer permission.
// Already registered timers keep their precision until the next reconcile.
func (t *TimerTable) SetExactAllowed(allowed bool) {
	t.mu.Lock()
	t.exactAllowed = allowed
	t.mu.Unlock()
}

// CanScheduleExact implements Platform.
func (t *TimerTable) CanScheduleExact() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exactAllowed
}

// SetExact implements Platform.
func (t *TimerTable) SetExact(code int, at time.Time, payload Payload) {
	t.set(Entry{Code: code, At: at, Exact: true, Payload: payload})
}

// SetInexact implements Platform. The instant is rounded up to the window so
// that nearby timers fire together.
func (t *TimerTable) SetInexact(code int, at time.Time, payload Payload) {
	t.set(Entry{Code: code, At: alignUp(at, t.Window), Payload: payload})
}

// Cancel implements Platform.
func (t *TimerTable) Cancel(code int) {
	t.mu.Lock()
	delete(t.entries, code)
	t.mu.Unlock()
}

func (t *TimerTable) set(e Entry) {
	t.mu.Lock()
	if t.entries == nil {
		t.entries = make(map[int]Entry)
	}
	// upsert: a code identifies at most one timer
	t.entries[e.Code] = e
	t.mu.Unlock()

	t.notify()
}

// notify wakes Run for an immediate check. Non-blocking if one is pending.
func (t *TimerTable) notify() {
	if t.notifyCh == nil {
		return
	}
	select {
	case t.notifyCh <- struct{}{}:
	default:
	}
}

// Len returns the number of pending timers.
func (t *TimerTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Entries returns the pending timers ordered by instant, then code.
func (t *TimerTable) Entries() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b Entry) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		return a.Code - b.Code
	})
	return out
}

// FireDue removes every timer due at now and hands its payload to OnFire.
// It returns the number of fired timers.
func (t *TimerTable) FireDue(now time.Time) int {
	t.mu.Lock()
	var due []Entry
	for code, e := range t.entries {
		if !e.At.After(now) {
			due = append(due, e)
			delete(t.entries, code)
		}
	}
	t.mu.Unlock()

	slices.SortFunc(due, func(a, b Entry) int { return a.At.Compare(b.At) })
	for _, e := range due {
		slog.Info(config.MsgTimerFired,
			config.LogKeyComponent, config.CompAlarm,
			config.LogKeyRecordID, e.Payload.RecordID,
			config.LogKeyCode, e.Code,
			config.LogKeyFireAt, e.At)
		if t.OnFire != nil {
			t.OnFire(e.Payload)
		}
	}
	return len(due)
}

// Run polls the clock until ctx is cancelled.
func (t *TimerTable) Run(ctx context.Context) {
	resolution := t.Resolution
	if resolution <= 0 {
		resolution = config.TimerResolution
	}
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	t.FireDue(t.Clock.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.FireDue(t.Clock.Now())
		case <-t.notifyCh:
			t.FireDue(t.Clock.Now())
		}
	}
}

// alignUp rounds at up to the next multiple of window.
func alignUp(at time.Time, window time.Duration) time.Time {
	if window <= 0 {
		return at
	}
	aligned := at.Truncate(window)
	if aligned.Before(at) {
		aligned = aligned.Add(window)
	}
	return aligned
}
