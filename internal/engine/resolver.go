package engine

import (
	"time"

	"github.com/tartampluch/go-lunar-birthday/internal/lunar"
)

// Resolver projects a recurring lunar (month, day) onto the solar calendar.
type Resolver struct {
	Provider lunar.Provider
}

// NextOccurrence returns the earliest solar date, at midnight in now's location,
// that is not before today and falls on the given lunar month and day.
//
// A day the month cannot hold (30 in a 29-day month) is left to the provider's clamping.
func (r Resolver) NextOccurrence(lunarMonth, lunarDay int, now time.Time) time.Time {
	today := startOfDay(now)
	loc := today.Location()

	year := r.Provider.SolarToLunar(today).Year
	candidate := startOfDay(r.Provider.LunarToSolar(year, lunarMonth, lunarDay, loc))

	if candidate.Before(today) {
		candidate = startOfDay(r.Provider.LunarToSolar(year+1, lunarMonth, lunarDay, loc))
	}
	return candidate
}

// DaysUntil returns the number of calendar days from now's day to occurrence.
func DaysUntil(now, occurrence time.Time) int {
	from := startOfDay(now)
	to := startOfDay(occurrence.In(from.Location()))
	// Dates are built with time.Date so that DST shifts do not skew the count.
	fromUTC := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toUTC := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toUTC.Sub(fromUTC).Hours() / 24)
}
