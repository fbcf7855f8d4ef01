package alarm_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lunar-birthday/internal/alarm"
	"github.com/tartampluch/go-lunar-birthday/internal/engine"
	"github.com/tartampluch/go-lunar-birthday/internal/lunar"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockClock is a settable clock safe for use across goroutines.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// MockPlatform records scheduler calls using `testify/mock`.
type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) CanScheduleExact() bool {
	return m.Called().Bool(0)
}

func (m *MockPlatform) SetExact(code int, at time.Time, payload alarm.Payload) {
	m.Called(code, at, payload)
}

func (m *MockPlatform) SetInexact(code int, at time.Time, payload alarm.Payload) {
	m.Called(code, at, payload)
}

func (m *MockPlatform) Cancel(code int) {
	m.Called(code)
}

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

var twoDaysBefore = time.Date(2026, 9, 23, 0, 0, 0, 0, time.UTC)

func grandma() engine.BirthdayRecord {
	return engine.BirthdayRecord{
		ID:            1000,
		Name:          "Grandma",
		LunarMonth:    8,
		LunarDay:      15,
		RemindOffsets: []int{0, 1},
		RemindHours:   []int{9, 19},
	}
}

// uncle's id never shares a request code with grandma's (different last two digits).
func uncle() engine.BirthdayRecord {
	return engine.BirthdayRecord{
		ID:            1001,
		Name:          "Uncle",
		LunarMonth:    8,
		LunarDay:      20,
		RemindOffsets: []int{1},
		RemindHours:   []int{14},
	}
}

func newTableScheduler(clock *MockClock, onFire func(alarm.Payload)) (*alarm.Scheduler, *alarm.TimerTable) {
	table := alarm.NewTimerTable(clock, onFire)
	s := alarm.NewScheduler(table, engine.NewPlanner(lunar.NewSixTail()), clock)
	return s, table
}

func codesOf(entries []alarm.Entry) []int {
	codes := make([]int, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, e.Code)
	}
	return codes
}

// -----------------------------------------------------------------------------
// Scheduler
// -----------------------------------------------------------------------------

func TestReconcile_Idempotent(t *testing.T) {
	clock := &MockClock{now: twoDaysBefore}
	s, table := newTableScheduler(clock, nil)
	records := []engine.BirthdayRecord{grandma(), uncle()}

	first := s.Reconcile(records)
	snapshot := table.Entries()
	second := s.Reconcile(records)

	assert.Equal(t, 5, first)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, table.Entries())
}

// neighbour's sweep covers some of grandma's codes (same last two id digits)
// although none of their planned codes collide.
func neighbour() engine.BirthdayRecord {
	return engine.BirthdayRecord{
		ID:            1800,
		Name:          "Neighbour",
		LunarMonth:    8,
		LunarDay:      15,
		RemindOffsets: []int{0, 1},
		RemindHours:   []int{12},
	}
}

func TestReconcile_OverlappingSweepsKeepEveryTimer(t *testing.T) {
	require.True(t, engine.CodesOverlap(1000, 1800, 30))

	orders := map[string][]engine.BirthdayRecord{
		"grandma first":   {grandma(), neighbour()},
		"neighbour first": {neighbour(), grandma()},
	}

	for name, records := range orders {
		t.Run(name, func(t *testing.T) {
			clock := &MockClock{now: twoDaysBefore}
			s, table := newTableScheduler(clock, nil)

			assert.Equal(t, 6, s.Reconcile(records))

			codes := codesOf(table.Entries())
			assert.Len(t, codes, 6)
			for _, want := range []int{1900, 2900, 101900, 102900, 3000, 103000} {
				assert.Contains(t, codes, want)
			}
		})
	}
}

func TestReconcile_DeletedRecordLeavesNoTimers(t *testing.T) {
	clock := &MockClock{now: twoDaysBefore}
	s, table := newTableScheduler(clock, nil)

	s.Reconcile([]engine.BirthdayRecord{grandma(), uncle()})
	require.Equal(t, 5, table.Len())

	s.Reconcile([]engine.BirthdayRecord{uncle()})

	remaining := codesOf(table.Entries())
	for _, code := range engine.SweepCodes(1000, 30) {
		assert.NotContains(t, remaining, code)
	}
	assert.Equal(t, []int{engine.DeriveRequestCode(1001, 1, 14)}, remaining)
}

func TestCancelAll_SweepsOutdatedSets(t *testing.T) {
	clock := &MockClock{now: twoDaysBefore}
	s, table := newTableScheduler(clock, nil)

	s.ScheduleAll(grandma())
	require.Equal(t, 4, table.Len())

	// The record was edited: its current sets no longer name the old timers.
	edited := grandma()
	edited.RemindOffsets = []int{2}
	edited.RemindHours = []int{7}
	s.CancelAll(edited)

	assert.Zero(t, table.Len())
}

func TestScheduleAll_PayloadIsSelfContained(t *testing.T) {
	clock := &MockClock{now: twoDaysBefore}
	s, table := newTableScheduler(clock, nil)
	s.FormatMessage = func(name string, offset, hour int) string { return name + "!" }

	s.ScheduleAll(grandma())

	entries := table.Entries()
	require.Len(t, entries, 4)
	first := entries[0]
	assert.True(t, first.Exact)
	assert.Equal(t, alarm.Payload{
		RecordID:    1000,
		RequestCode: 101900,
		Name:        "Grandma",
		Message:     "Grandma!",
		FireAt:      time.Date(2026, 9, 24, 9, 0, 0, 0, time.UTC),
	}, first.Payload)
}

func TestScheduleAll_InexactFallback(t *testing.T) {
	platform := new(MockPlatform)
	platform.On("CanScheduleExact").Return(false)
	platform.On("SetInexact", mock.Anything, mock.Anything, mock.Anything).Return()

	s := alarm.NewScheduler(platform, engine.NewPlanner(lunar.NewSixTail()), &MockClock{now: twoDaysBefore})
	n := s.ScheduleAll(grandma())

	assert.Equal(t, 4, n)
	platform.AssertNumberOfCalls(t, "SetInexact", 4)
	platform.AssertNotCalled(t, "SetExact", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduleAll_EmptySetsRegisterNothing(t *testing.T) {
	platform := new(MockPlatform)
	s := alarm.NewScheduler(platform, engine.NewPlanner(lunar.NewSixTail()), &MockClock{now: twoDaysBefore})

	rec := grandma()
	rec.RemindOffsets = []int{}

	assert.Zero(t, s.ScheduleAll(rec))
	platform.AssertExpectations(t)
}

func TestCancelAll_FullSweep(t *testing.T) {
	platform := new(MockPlatform)
	platform.On("Cancel", mock.Anything).Return()

	s := alarm.NewScheduler(platform, engine.NewPlanner(lunar.NewSixTail()), &MockClock{now: twoDaysBefore})
	s.CancelAll(grandma())

	platform.AssertNumberOfCalls(t, "Cancel", 31*24)
	platform.AssertCalled(t, "Cancel", engine.DeriveRequestCode(1000, 30, 23))
}

// -----------------------------------------------------------------------------
// Timer table
// -----------------------------------------------------------------------------

func TestTimerTable_UpsertAndCancel(t *testing.T) {
	table := alarm.NewTimerTable(&MockClock{}, nil)
	at := time.Date(2026, 9, 24, 9, 0, 0, 0, time.UTC)

	table.SetExact(42, at, alarm.Payload{Name: "A"})
	table.SetExact(42, at.Add(time.Hour), alarm.Payload{Name: "B"})
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "B", table.Entries()[0].Payload.Name)

	table.Cancel(42)
	table.Cancel(43)
	assert.Zero(t, table.Len())
}

func TestTimerTable_InexactAlignment(t *testing.T) {
	table := alarm.NewTimerTable(&MockClock{}, nil)

	table.SetInexact(1, time.Date(2026, 9, 24, 9, 3, 0, 0, time.UTC), alarm.Payload{})
	table.SetInexact(2, time.Date(2026, 9, 24, 19, 0, 0, 0, time.UTC), alarm.Payload{})

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Exact)
	assert.True(t, time.Date(2026, 9, 24, 9, 10, 0, 0, time.UTC).Equal(entries[0].At))
	assert.True(t, time.Date(2026, 9, 24, 19, 0, 0, 0, time.UTC).Equal(entries[1].At), "aligned instants stay put")
}

func TestTimerTable_ExactPermission(t *testing.T) {
	table := alarm.NewTimerTable(&MockClock{}, nil)
	assert.True(t, table.CanScheduleExact())

	table.SetExactAllowed(false)
	assert.False(t, table.CanScheduleExact())
}

func TestTimerTable_FireDue(t *testing.T) {
	var fired []alarm.Payload
	table := alarm.NewTimerTable(&MockClock{}, func(p alarm.Payload) { fired = append(fired, p) })

	morning := time.Date(2026, 9, 24, 9, 0, 0, 0, time.UTC)
	table.SetExact(1, morning, alarm.Payload{RequestCode: 1})
	table.SetExact(2, morning.Add(10*time.Hour), alarm.Payload{RequestCode: 2})

	assert.Zero(t, table.FireDue(morning.Add(-time.Second)))
	assert.Equal(t, 1, table.FireDue(morning))
	require.Len(t, fired, 1)
	assert.Equal(t, 1, fired[0].RequestCode)
	assert.Equal(t, 1, table.Len(), "fired timers are removed")

	// Resume after a long sleep: overdue timers fire once.
	assert.Equal(t, 1, table.FireDue(morning.AddDate(0, 0, 3)))
	assert.Zero(t, table.FireDue(morning.AddDate(0, 0, 3)))
	assert.Len(t, fired, 2)
}

func TestTimerTable_Run(t *testing.T) {
	clock := &MockClock{now: twoDaysBefore}
	fired := make(chan alarm.Payload, 4)
	table := alarm.NewTimerTable(clock, func(p alarm.Payload) { fired <- p })
	table.Resolution = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		table.Run(ctx)
		close(done)
	}()

	table.SetExact(7, twoDaysBefore.Add(time.Hour), alarm.Payload{RequestCode: 7})
	assert.Never(t, func() bool { return len(fired) > 0 }, 50*time.Millisecond, 10*time.Millisecond)

	clock.Set(twoDaysBefore.Add(2 * time.Hour))
	select {
	case p := <-fired:
		assert.Equal(t, 7, p.RequestCode)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
