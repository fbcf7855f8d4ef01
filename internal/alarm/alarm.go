// Package alarm registers reminder triggers as one-shot timers and keeps the
// timer set in sync with the birthday records.
package alarm

import (
	"time"

	"github.com/tartampluch/go-lunar-birthday/internal/engine"
)

// Payload is everything a fired timer hands to the notification side.
// It must be enough on its own: the receiver shares no state with the scheduler.
type Payload struct {
	RecordID    int64
	RequestCode int
	Name        string
	Message     string
	FireAt      time.Time
}

// PayloadOf builds the payload of a trigger, composing its message with format.
func PayloadOf(trig engine.ReminderTrigger, format engine.MessageFormatter) Payload {
	return Payload{
		RecordID:    trig.Record.ID,
		RequestCode: trig.RequestCode,
		Name:        trig.Record.Name,
		Message:     engine.ComposeMessage(trig.Record.Name, trig.OffsetDays, trig.Hour, format),
		FireAt:      trig.FireAt,
	}
}

// Platform is the timer registry the scheduler drives.
// Timers are identified only by their request code: setting a code that is
// already registered replaces it, cancelling an unknown code does nothing.
type Platform interface {
	// CanScheduleExact reports whether exact wake-up timers are allowed.
	CanScheduleExact() bool
	SetExact(code int, at time.Time, payload Payload)
	// SetInexact registers a timer that may fire somewhat after at.
	SetInexact(code int, at time.Time, payload Payload)
	Cancel(code int)
}
