package engine

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/tartampluch/go-lunar-birthday/internal/lunar"
)

// UpcomingBirthday is the display view of one record: when it happens next and
// which reminders are still pending for that occurrence.
type UpcomingBirthday struct {
	Record         BirthdayRecord
	NextOccurrence time.Time
	DaysLeft       int
	Triggers       []ReminderTrigger
}

// FeedGenerator renders the record list as an iCalendar feed.
type FeedGenerator struct {
	Clock   Clock
	Planner *Planner

	// FormatSummary and FormatMessage let the UI inject localized strings.
	FormatSummary func(name string) string
	FormatMessage MessageFormatter
}

// Generate builds the ICS document, the upcoming list sorted by next occurrence
// and the number of birthdays falling today.
func (g *FeedGenerator) Generate(records []BirthdayRecord) ([]byte, []UpcomingBirthday, int, error) {
	start := time.Now()
	now := g.Clock.Now()

	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	upcoming := make([]UpcomingBirthday, 0, len(records))
	today := 0

	for _, record := range records {
		occurrence := g.Planner.Resolver.NextOccurrence(record.LunarMonth, record.LunarDay, now)
		triggers := g.Planner.Plan(record, now)
		SortTriggers(triggers)

		entry := UpcomingBirthday{
			Record:         record,
			NextOccurrence: occurrence,
			DaysLeft:       DaysUntil(now, occurrence),
			Triggers:       triggers,
		}
		if entry.DaysLeft == 0 {
			today++
		}
		upcoming = append(upcoming, entry)

		event := g.createEvent(entry)
		event.Props.Set(dtStampProp)
		cal.Children = append(cal.Children, event.Component)
	}

	slices.SortFunc(upcoming, func(a, b UpcomingBirthday) int {
		if c := a.NextOccurrence.Compare(b.NextOccurrence); c != 0 {
			return c
		}
		return strings.Compare(a.Record.Name, b.Record.Name)
	})

	if len(cal.Children) == 0 {
		g.logSuccess(0, 0, start)
		return []byte(config.StubVCalendar), upcoming, 0, nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, nil, 0, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}

	g.logSuccess(len(records), today, start)
	return buf.Bytes(), upcoming, today, nil
}

// createEvent renders one all-day event with an absolute VALARM per pending trigger.
func (g *FeedGenerator) createEvent(entry UpcomingBirthday) *ical.Event {
	record := entry.Record
	event := ical.NewEvent()
	event.Props.SetText(config.PropUID, EventUID(record.ID, entry.NextOccurrence.Year()))

	summary := fmt.Sprintf(config.FallbackSummary, record.Name)
	if g.FormatSummary != nil {
		if s := g.FormatSummary(record.Name); s != "" {
			summary = s
		}
	}
	event.Props.SetText(config.PropSummary, summary)

	ld := g.Planner.Resolver.Provider.SolarToLunar(entry.NextOccurrence)
	event.Props.SetText(config.PropDescription, lunarDescription(ld, record))

	dtStartProp := ical.NewProp(config.PropDTStart)
	dtStartProp.SetDate(entry.NextOccurrence)
	event.Props.Set(dtStartProp)

	for _, trig := range entry.Triggers {
		addAlarm(event, trig.FireAt, ComposeMessage(record.Name, trig.OffsetDays, trig.Hour, g.FormatMessage))
	}
	return event
}

// lunarDescription names the lunar date of the occurrence, followed by the
// zodiac and whatever festivals or solar term fall on that day.
func lunarDescription(ld lunar.Date, record BirthdayRecord) string {
	parts := []string{fmt.Sprintf(config.FormatLunarDescription,
		ld.YearGanZhi, ld.MonthName, ld.DayName, record.LunarMonth, record.LunarDay)}
	if ld.Zodiac != "" {
		parts = append(parts, fmt.Sprintf(config.FormatZodiac, ld.Zodiac))
	}
	parts = append(parts, ld.Festivals...)
	if ld.SolarTerm != "" {
		parts = append(parts, ld.SolarTerm)
	}
	return strings.Join(parts, config.AlmanacSeparator)
}

// EventUID derives a stable UID from the record id and the occurrence year.
func EventUID(id int64, year int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf(config.FormatHashInput, id, config.UIDSalt)))
	return fmt.Sprintf(config.FormatUID, fmt.Sprintf("%x", hash[:config.UIDHashLength]), year, config.ICalDomain)
}

// addAlarm appends a DISPLAY alarm firing at an absolute instant.
func addAlarm(event *ical.Event, at time.Time, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.PropAction, config.ICalAction)
	alarm.Props.SetText(config.PropDescription, description)

	// Set trigger manually: an absolute trigger needs VALUE=DATE-TIME, not TEXT.
	triggerProp := ical.NewProp(config.PropTrigger)
	triggerProp.Params.Set(config.ParamValue, config.ParamValueDateTime)
	triggerProp.Value = at.UTC().Format(config.ICalUTCFormat)
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}

func (g *FeedGenerator) logSuccess(records, today int, start time.Time) {
	slog.Info(config.MsgGenSuccess,
		config.LogKeyComponent, config.CompEngine,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyRecords, records),
			slog.Int(config.LogKeyCount, today),
		),
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
}
