package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lunar-birthday/internal/engine"
	"github.com/tartampluch/go-lunar-birthday/internal/lunar"
)

// midAutumn is the record used throughout the scenarios: lunar 8/15.
func midAutumn() engine.BirthdayRecord {
	return engine.BirthdayRecord{
		ID:            1000,
		Name:          "Grandma",
		LunarMonth:    8,
		LunarDay:      15,
		RemindOffsets: []int{0, 1},
		RemindHours:   []int{9, 19},
	}
}

func TestNextOccurrence_Scenarios(t *testing.T) {
	r := engine.Resolver{Provider: lunar.NewSixTail()}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "Before this year's occurrence",
			now:  time.Date(2025, 9, 1, 15, 30, 0, 0, time.UTC),
			want: time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "On the day itself, late evening",
			now:  time.Date(2025, 10, 6, 23, 0, 0, 0, time.UTC),
			want: time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "Day after rolls to next lunar year",
			now:  time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 9, 25, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "Solar January still in previous lunar year",
			now:  time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
			want: time.Date(2026, 9, 25, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.NextOccurrence(8, 15, tt.now)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

// TestNextOccurrence_EarliestNotBeforeToday checks, over a sample of days, that the
// result is never before today and that no earlier day in between matches.
func TestNextOccurrence_EarliestNotBeforeToday(t *testing.T) {
	p := lunar.NewSixTail()
	r := engine.Resolver{Provider: p}
	loc := time.FixedZone("CST", 8*3600)

	targets := [][2]int{{1, 1}, {6, 10}, {8, 15}, {12, 29}}
	start := time.Date(2025, 1, 3, 18, 0, 0, 0, loc)

	for i := 0; i < 24; i++ {
		now := start.AddDate(0, 0, i*17)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

		for _, md := range targets {
			got := r.NextOccurrence(md[0], md[1], now)
			require.False(t, got.Before(today), "%v for %s", md, now)

			ld := p.SolarToLunar(got)
			assert.Equal(t, md[0], ld.Month, "%v for %s", md, now)
			assert.Equal(t, md[1], ld.Day, "%v for %s", md, now)
			assert.False(t, ld.Leap)

			for d := today; d.Before(got); d = d.AddDate(0, 0, 1) {
				e := p.SolarToLunar(d)
				if !e.Leap && e.Month == md[0] && e.Day == md[1] {
					t.Fatalf("%v for %s: earlier match %s than %s", md, now, d, got)
				}
			}
		}
	}
}

func TestPlan_AfterThisYearsOccurrence(t *testing.T) {
	planner := engine.NewPlanner(lunar.NewSixTail())
	now := time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC)

	triggers := planner.Plan(midAutumn(), now)

	require.Len(t, triggers, 4)
	nextYear := time.Date(2026, 9, 25, 0, 0, 0, 0, time.UTC)
	for _, trig := range triggers {
		assert.True(t, trig.FireAt.After(now))
		assert.True(t, nextYear.Equal(trig.Occurrence))
		assert.Equal(t, engine.DeriveRequestCode(1000, trig.OffsetDays, trig.Hour), trig.RequestCode)
	}
}

func TestPlan_TwoDaysBeforeKeepsTomorrowMorning(t *testing.T) {
	planner := engine.NewPlanner(lunar.NewSixTail())
	now := time.Date(2026, 9, 23, 0, 0, 0, 0, time.UTC)

	triggers := planner.Plan(midAutumn(), now)
	engine.SortTriggers(triggers)

	require.Len(t, triggers, 4)
	first := triggers[0]
	assert.Equal(t, 1, first.OffsetDays)
	assert.Equal(t, 9, first.Hour)
	assert.True(t, time.Date(2026, 9, 24, 9, 0, 0, 0, time.UTC).Equal(first.FireAt))
	assert.Equal(t, 101900, first.RequestCode)
}

func TestPlan_SkipsExpiredInstants(t *testing.T) {
	planner := engine.NewPlanner(lunar.NewSixTail())
	// Occurrence day at 10:00: offset 1 is gone, offset 0 at 09:00 is gone, 19:00 remains.
	now := time.Date(2026, 9, 25, 10, 0, 0, 0, time.UTC)

	triggers := planner.Plan(midAutumn(), now)

	require.Len(t, triggers, 1)
	assert.Equal(t, 0, triggers[0].OffsetDays)
	assert.Equal(t, 19, triggers[0].Hour)
}

func TestPlan_EmptyAndInvalidSets(t *testing.T) {
	planner := engine.NewPlanner(lunar.NewSixTail())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		offsets []int
		hours   []int
		want    int
	}{
		{"No offsets", []int{}, []int{9}, 0},
		{"No hours", []int{1}, []int{}, 0},
		{"Nil sets", nil, nil, 0},
		{"Duplicates collapse", []int{1, 1}, []int{9, 9}, 1},
		{"Offset beyond sweep bound", []int{31, 2}, []int{9}, 1},
		{"Negative offset", []int{-1}, []int{9}, 0},
		{"Hours outside the day", []int{1}, []int{-1, 24, 9}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := midAutumn()
			rec.RemindOffsets = tt.offsets
			rec.RemindHours = tt.hours

			assert.NotPanics(t, func() {
				assert.Len(t, planner.Plan(rec, now), tt.want)
			})
		})
	}
}

func TestPlan_RespectsLocation(t *testing.T) {
	planner := engine.NewPlanner(lunar.NewSixTail())
	taipei := time.FixedZone("Asia/Taipei", 8*3600)
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, taipei)

	rec := midAutumn()
	rec.RemindOffsets = []int{0}
	rec.RemindHours = []int{9}

	triggers := planner.Plan(rec, now)
	require.Len(t, triggers, 1)
	assert.Equal(t, taipei, triggers[0].FireAt.Location())
	assert.Equal(t, 9, triggers[0].FireAt.Hour())
	assert.True(t, time.Date(2026, 9, 25, 1, 0, 0, 0, time.UTC).Equal(triggers[0].FireAt))
}

func TestDeriveRequestCode_DistinctPerRecord(t *testing.T) {
	for _, id := range []int64{0, 1000, 99999, 1760000123456} {
		seen := map[int]struct{}{}
		for d := 0; d <= 30; d++ {
			for h := 0; h <= 23; h++ {
				code := engine.DeriveRequestCode(id, d, h)
				_, dup := seen[code]
				require.False(t, dup, "id %d: duplicate code %d at offset %d hour %d", id, code, d, h)
				seen[code] = struct{}{}
			}
		}
		assert.Len(t, seen, 31*24)
		assert.ElementsMatch(t, keys(seen), engine.SweepCodes(id, 30))
	}
}

func TestDeriveRequestCode_Formula(t *testing.T) {
	assert.Equal(t, 1000, engine.DeriveRequestCode(1000, 0, 0))
	assert.Equal(t, 302900, engine.DeriveRequestCode(1000, 3, 19))
	assert.Equal(t, 23456+100000+900, engine.DeriveRequestCode(1760000123456, 1, 9))
	assert.Equal(t, engine.DeriveRequestCode(5, 1, 9), engine.DeriveRequestCode(100005, 1, 9))
}

func TestCodesOverlap(t *testing.T) {
	assert.True(t, engine.CodesOverlap(1000, 101000, 30), "equal ids mod 100000")
	assert.True(t, engine.CodesOverlap(1000, 1100, 30), "hour band reaches into id digits")
	assert.True(t, engine.CodesOverlap(99900, 100000, 30), "band carry into the offset digit")
	assert.False(t, engine.CodesOverlap(1000, 1001, 30))
	assert.False(t, engine.CodesOverlap(1000, 50050, 30))
}

func keys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
