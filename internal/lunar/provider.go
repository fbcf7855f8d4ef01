// Package lunar wraps the Chinese lunar calendar behind a small interface so
// the reminder engine never talks to the calendar library directly.
package lunar

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/6tail/lunar-go/calendar"
	"github.com/tartampluch/go-lunar-birthday/internal/config"
)

// Date is the lunar representation of one solar day.
type Date struct {
	Year  int
	Month int // 1..12, always positive
	Day   int
	Leap  bool // true when Month is the intercalary month of Year

	YearGanZhi string // stem-branch name of the year, e.g. 乙巳
	Zodiac     string
	MonthName  string
	DayName    string
	Festivals  []string
	SolarTerm  string
}

// Provider converts between the solar and the lunar calendar.
// Implementations must be deterministic and must not panic.
type Provider interface {
	// SolarToLunar returns the lunar date of t's calendar day (time of day is ignored).
	SolarToLunar(t time.Time) Date

	// LunarToSolar returns the solar date, at midnight in loc, of a non-leap lunar date.
	// Out-of-range months and days are clamped.
	LunarToSolar(year, month, day int, loc *time.Location) time.Time

	// DaysInMonth returns the length (29 or 30) of a non-leap lunar month, 0 if unknown.
	DaysInMonth(year, month int) int
}

// SixTail implements Provider on top of github.com/6tail/lunar-go.
type SixTail struct{}

// NewSixTail returns the default provider.
func NewSixTail() SixTail {
	return SixTail{}
}

// SolarToLunar implements Provider.
func (p SixTail) SolarToLunar(t time.Time) (d Date) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(r)
			d = Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
		}
	}()

	l := calendar.NewSolarFromYmd(t.Year(), int(t.Month()), t.Day()).GetLunar()

	// lunar-go encodes leap months as negative numbers.
	month := l.GetMonth()
	leap := month < 0
	if leap {
		month = -month
	}

	var festivals []string
	if fl := l.GetFestivals(); fl != nil {
		for e := fl.Front(); e != nil; e = e.Next() {
			festivals = append(festivals, fmt.Sprint(e.Value))
		}
	}

	return Date{
		Year:       l.GetYear(),
		Month:      month,
		Day:        l.GetDay(),
		Leap:       leap,
		YearGanZhi: l.GetYearInGanZhi(),
		Zodiac:     l.GetYearShengXiao(),
		MonthName:  l.GetMonthInChinese(),
		DayName:    l.GetDayInChinese(),
		Festivals:  festivals,
		SolarTerm:  l.GetJieQi(),
	}
}

// LunarToSolar implements Provider.
func (p SixTail) LunarToSolar(year, month, day int, loc *time.Location) (t time.Time) {
	if loc == nil {
		loc = time.Local
	}
	month = clamp(month, config.MinLunarMonth, config.MaxLunarMonth)
	day = clamp(day, config.MinLunarDay, config.MaxLunarDay)

	if n := p.DaysInMonth(year, month); n > 0 && day > n {
		slog.Debug(config.MsgProviderClamp,
			config.LogKeyComponent, config.CompLunar,
			config.LogKeyYear, year,
			config.LogKeyMonth, month,
			config.LogKeyDay, day,
			config.LogKeyValue, n)
		day = n
	}

	defer func() {
		if r := recover(); r != nil {
			logPanic(r)
			// Best effort: keep the numbers, the result is at worst a few weeks off.
			t = time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
		}
	}()

	s := calendar.NewLunarFromYmd(year, month, day).GetSolar()
	return time.Date(s.GetYear(), time.Month(s.GetMonth()), s.GetDay(), 0, 0, 0, 0, loc)
}

// DaysInMonth implements Provider.
func (p SixTail) DaysInMonth(year, month int) (n int) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(r)
			n = 0
		}
	}()

	m := calendar.NewLunarYear(year).GetMonth(month)
	if m == nil {
		return 0
	}
	return m.GetDayCount()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func logPanic(r any) {
	slog.Warn(config.MsgProviderPanic,
		config.LogKeyComponent, config.CompLunar,
		config.LogKeyError, fmt.Errorf("%s: %v", config.ErrProviderPanic, r))
}
