package engine

import (
	"fmt"

	"github.com/tartampluch/go-lunar-birthday/internal/config"
)

// MessageFormatter localizes the text of a reminder. The UI injects one backed by
// its translation bundle; an empty result falls back to the built-in English text.
type MessageFormatter func(name string, offsetDays, hour int) string

// DayPart is the coarse time of day a reminder hour belongs to.
type DayPart int

const (
	Morning DayPart = iota
	Afternoon
	Evening
)

// DayPartOf classifies an hour: 5-11 morning, 12-17 afternoon, anything else evening.
func DayPartOf(hour int) DayPart {
	switch {
	case hour >= config.MorningStartHour && hour < config.AfternoonStartHour:
		return Morning
	case hour >= config.AfternoonStartHour && hour < config.EveningStartHour:
		return Afternoon
	default:
		return Evening
	}
}

func (p DayPart) String() string {
	switch p {
	case Morning:
		return config.FallbackMorning
	case Afternoon:
		return config.FallbackAfternoon
	default:
		return config.FallbackEvening
	}
}

// ComposeMessage builds the notification body carried by a trigger's payload.
func ComposeMessage(name string, offsetDays, hour int, format MessageFormatter) string {
	if format != nil {
		if msg := format(name, offsetDays, hour); msg != "" {
			return msg
		}
	}
	return FallbackMessage(name, offsetDays, hour)
}

// FallbackMessage is the untranslated reminder text.
func FallbackMessage(name string, offsetDays, hour int) string {
	var msg string
	switch offsetDays {
	case 0:
		msg = fmt.Sprintf(config.FallbackMsgToday, name)
	case 1:
		msg = fmt.Sprintf(config.FallbackMsgTomorrow, name)
	default:
		msg = fmt.Sprintf(config.FallbackMsgDays, name, offsetDays)
	}
	return fmt.Sprintf(config.FallbackMsgAt, msg, DayPartOf(hour), hour)
}
