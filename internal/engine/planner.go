package engine

import (
	"log/slog"
	"time"

	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/tartampluch/go-lunar-birthday/internal/lunar"
)

// Planner expands a BirthdayRecord into the reminder triggers still ahead of "now".
type Planner struct {
	Resolver Resolver

	// MaxOffsetDays is the largest offset that may be planned. It must match the
	// cancellation sweep bound, otherwise a registered timer could outlive its record.
	MaxOffsetDays int
}

// NewPlanner creates a Planner with the default sweep bound.
func NewPlanner(provider lunar.Provider) *Planner {
	return &Planner{
		Resolver:      Resolver{Provider: provider},
		MaxOffsetDays: config.MaxOffsetDays,
	}
}

// Plan returns one trigger per (offset, hour) pair of the record whose fire instant
// is not before now. Passed instants are skipped, not rolled to next year: the next
// reconcile after the occurrence picks up the following year on its own.
// Empty reminder sets yield no triggers.
func (p *Planner) Plan(record BirthdayRecord, now time.Time) []ReminderTrigger {
	offsets := distinct(record.RemindOffsets)
	hours := p.validHours(record)
	if len(offsets) == 0 || len(hours) == 0 {
		return nil
	}

	occurrence := p.Resolver.NextOccurrence(record.LunarMonth, record.LunarDay, now)
	loc := occurrence.Location()

	var triggers []ReminderTrigger
	for _, offset := range offsets {
		if offset < 0 || offset > p.maxOffset() {
			slog.Warn(config.MsgPlanSkipOffset,
				config.LogKeyComponent, config.CompPlanner,
				config.LogKeyRecordID, record.ID,
				config.LogKeyOffset, offset)
			continue
		}

		day := occurrence.AddDate(0, 0, -offset)
		for _, hour := range hours {
			fireAt := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
			if fireAt.Before(now) {
				slog.Debug(config.MsgPlanExpired,
					config.LogKeyComponent, config.CompPlanner,
					config.LogKeyRecordID, record.ID,
					config.LogKeyFireAt, fireAt)
				continue
			}

			triggers = append(triggers, ReminderTrigger{
				Record:      record,
				Occurrence:  occurrence,
				OffsetDays:  offset,
				Hour:        hour,
				FireAt:      fireAt,
				RequestCode: DeriveRequestCode(record.ID, offset, hour),
			})
		}
	}
	return triggers
}

func (p *Planner) validHours(record BirthdayRecord) []int {
	var hours []int
	for _, h := range distinct(record.RemindHours) {
		if h < config.MinHour || h > config.MaxHour {
			slog.Warn(config.MsgPlanSkipHour,
				config.LogKeyComponent, config.CompPlanner,
				config.LogKeyRecordID, record.ID,
				config.LogKeyHour, h)
			continue
		}
		hours = append(hours, h)
	}
	return hours
}

// SweepBound returns the largest offset the cancellation sweep must cover.
func (p *Planner) SweepBound() int {
	return p.maxOffset()
}

func (p *Planner) maxOffset() int {
	if p.MaxOffsetDays <= 0 {
		return config.MaxOffsetDays
	}
	return p.MaxOffsetDays
}

// DeriveRequestCode computes the timer key of one (record, offset, hour) triple:
//
//	(id mod 100000) + offset*100000 + hour*100
//
// Five decimal digits hold the low-order id, the offset starts at the sixth digit
// and the hour steps by 100, so for a fixed id every (offset, hour) pair with
// hour <= 23 maps to a distinct code. Two different ids may still collide; see
// CodesOverlap.
func DeriveRequestCode(id int64, offsetDays, hour int) int {
	idPart := id % config.RequestCodeIDModulus
	if idPart < 0 {
		idPart += config.RequestCodeIDModulus
	}
	return int(idPart) + offsetDays*config.RequestCodeOffsetBand + hour*config.RequestCodeHourBand
}

// SweepCodes enumerates every request code derivable for id with offsets
// 0..maxOffset and hours 0..23.
func SweepCodes(id int64, maxOffset int) []int {
	if maxOffset < 0 {
		maxOffset = 0
	}
	codes := make([]int, 0, (maxOffset+1)*(config.MaxHour+1))
	for d := 0; d <= maxOffset; d++ {
		for h := config.MinHour; h <= config.MaxHour; h++ {
			codes = append(codes, DeriveRequestCode(id, d, h))
		}
	}
	return codes
}

// CodesOverlap reports whether ids a and b can derive the same request code.
// Overlap is possible beyond equal ids mod 100000 because the hour band
// (hour*100) reaches into the id digits.
func CodesOverlap(a, b int64, maxOffset int) bool {
	seen := make(map[int]struct{}, (maxOffset+1)*(config.MaxHour+1))
	for _, c := range SweepCodes(a, maxOffset) {
		seen[c] = struct{}{}
	}
	for _, c := range SweepCodes(b, maxOffset) {
		if _, ok := seen[c]; ok {
			return true
		}
	}
	return false
}
