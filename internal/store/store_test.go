package store_test

import (
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lunar-birthday/internal/alarm"
	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/tartampluch/go-lunar-birthday/internal/engine"
	"github.com/tartampluch/go-lunar-birthday/internal/lunar"
	"github.com/tartampluch/go-lunar-birthday/internal/store"
)

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

// MockReconciler records every reconcile request.
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(records []engine.BirthdayRecord) int {
	return m.Called(records).Int(0)
}

var fixedNow = time.Date(2026, 9, 23, 0, 0, 0, 0, time.UTC)

func newPrefs(t *testing.T) fyne.Preferences {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)
	return a.Preferences()
}

func newStore(t *testing.T) (*store.ReminderStore, *MockReconciler, fyne.Preferences) {
	prefs := newPrefs(t)
	rec := new(MockReconciler)
	rec.On("Reconcile", mock.Anything).Return(0)
	return store.New(prefs, rec, MockClock{CurrentTime: fixedNow}), rec, prefs
}

func TestLoad_EmptyAndCorrupt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"Nothing stored", ""},
		{"Not JSON", "{{{"},
		{"Object instead of list", `{"id":1}`},
		{"Truncated list", `[{"id":1,"name":"A"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, prefs := newStore(t)
			prefs.SetString(config.StoreKey, tt.raw)

			var got []engine.BirthdayRecord
			assert.NotPanics(t, func() { got = s.Load() })
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestLoad_DefaultsAndLegacyFields(t *testing.T) {
	s, _, prefs := newStore(t)
	prefs.SetString(config.StoreKey, `[
		{"id":1,"name":"Defaults","lunarMonth":8,"lunarDay":15},
		{"id":2,"name":"Legacy","lunarMonth":1,"lunarDay":1,"remindList":[0,3]},
		{"id":3,"name":"Explicit","lunarMonth":2,"lunarDay":30,"remindOffsets":[],"remindHours":[19]},
		{"id":4,"name":"Extra","lunarMonth":3,"lunarDay":3,"color":"red"}
	]`)

	got := s.Load()
	require.Len(t, got, 4)

	assert.Equal(t, []int{config.DefaultRemindOffset}, got[0].RemindOffsets)
	assert.Equal(t, []int{config.DefaultRemindHour}, got[0].RemindHours)
	assert.Equal(t, []int{0, 3}, got[1].RemindOffsets)
	assert.Empty(t, got[2].RemindOffsets, "an explicit empty set is kept")
	assert.Equal(t, []int{19}, got[2].RemindHours)
	assert.Equal(t, "Extra", got[3].Name)
}

func TestLoad_DropsOnlyUnusableRecords(t *testing.T) {
	s, _, prefs := newStore(t)
	prefs.SetString(config.StoreKey, `[
		{"id":1,"name":"Good","lunarMonth":8,"lunarDay":15},
		{"id":2,"name":"Month","lunarMonth":13,"lunarDay":1},
		{"id":3,"name":"Missing date"},
		{"id":"x","name":"Bad type","lunarMonth":1,"lunarDay":1},
		{"id":5,"name":"Also good","lunarMonth":12,"lunarDay":30}
	]`)

	got := s.Load()
	require.Len(t, got, 2)
	assert.Equal(t, "Good", got[0].Name)
	assert.Equal(t, "Also good", got[1].Name)
}

func TestSave_PersistsAndReconciles(t *testing.T) {
	s, rec, prefs := newStore(t)
	records := []engine.BirthdayRecord{
		{ID: 1000, Name: "Grandma", LunarMonth: 8, LunarDay: 15, RemindOffsets: []int{0, 1}, RemindHours: []int{9, 19}},
	}

	require.NoError(t, s.Save(records))

	rec.AssertCalled(t, "Reconcile", records)
	raw := prefs.String(config.StoreKey)
	assert.JSONEq(t,
		`[{"id":1000,"name":"Grandma","lunarMonth":8,"lunarDay":15,"remindOffsets":[0,1],"remindHours":[9,19]}]`,
		raw)
	assert.Equal(t, records, s.Load())
}

func TestAdd_ValidatesAndAssignsID(t *testing.T) {
	s, rec, _ := newStore(t)

	added, err := s.Add(engine.BirthdayRecord{Name: "  Grandma ", LunarMonth: 8, LunarDay: 15})
	require.NoError(t, err)

	assert.Equal(t, fixedNow.UnixMilli(), added.ID)
	assert.Equal(t, "Grandma", added.Name)
	assert.Equal(t, []int{config.DefaultRemindOffset}, added.RemindOffsets)
	assert.Equal(t, []int{config.DefaultRemindHour}, added.RemindHours)
	assert.Equal(t, []engine.BirthdayRecord{added}, s.Load())
	rec.AssertNumberOfCalls(t, "Reconcile", 1)

	invalid := []struct {
		record engine.BirthdayRecord
		want   string
	}{
		{engine.BirthdayRecord{Name: " ", LunarMonth: 1, LunarDay: 1}, config.ErrNameRequired},
		{engine.BirthdayRecord{Name: "A", LunarMonth: 0, LunarDay: 1}, config.ErrMonthRange},
		{engine.BirthdayRecord{Name: "A", LunarMonth: 1, LunarDay: 31}, config.ErrDayRange},
	}
	for _, tt := range invalid {
		_, err := s.Add(tt.record)
		assert.EqualError(t, err, tt.want)
	}
	rec.AssertNumberOfCalls(t, "Reconcile", 1)
}

func TestAdd_BumpsCollidingIDs(t *testing.T) {
	s, _, _ := newStore(t)

	first, err := s.Add(engine.BirthdayRecord{Name: "A", LunarMonth: 1, LunarDay: 1})
	require.NoError(t, err)
	second, err := s.Add(engine.BirthdayRecord{Name: "B", LunarMonth: 1, LunarDay: 2})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID, "same clock reading must not yield the same id")
	assert.False(t, engine.CodesOverlap(first.ID, second.ID, config.MaxOffsetDays))
}

func TestDelete(t *testing.T) {
	s, _, _ := newStore(t)
	require.NoError(t, s.Save([]engine.BirthdayRecord{
		{ID: 1, Name: "A", LunarMonth: 1, LunarDay: 1},
		{ID: 2, Name: "B", LunarMonth: 2, LunarDay: 2},
	}))

	require.NoError(t, s.Delete(1))
	got := s.Load()
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)

	err := s.Delete(42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrRecordNotFound)
}

func TestUpdate(t *testing.T) {
	s, _, _ := newStore(t)
	require.NoError(t, s.Save([]engine.BirthdayRecord{{ID: 1, Name: "A", LunarMonth: 1, LunarDay: 1}}))

	require.NoError(t, s.Update(engine.BirthdayRecord{ID: 1, Name: "A", LunarMonth: 3, LunarDay: 4, RemindOffsets: []int{7}}))
	got := s.Load()
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].LunarMonth)
	assert.Equal(t, []int{7}, got[0].RemindOffsets)

	assert.Error(t, s.Update(engine.BirthdayRecord{ID: 9, Name: "X", LunarMonth: 1, LunarDay: 1}))
}

func TestMerge_SkipsDuplicatesAndInvalid(t *testing.T) {
	s, rec, _ := newStore(t)
	require.NoError(t, s.Save([]engine.BirthdayRecord{{ID: 1, Name: "Grandma", LunarMonth: 8, LunarDay: 15}}))

	added, err := s.Merge([]engine.BirthdayRecord{
		{Name: "grandma", LunarMonth: 8, LunarDay: 15},
		{Name: "Uncle", LunarMonth: 2, LunarDay: 30},
		{Name: "Uncle", LunarMonth: 2, LunarDay: 30},
		{Name: "", LunarMonth: 1, LunarDay: 1},
		{Name: "Aunt", LunarMonth: 5, LunarDay: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	got := s.Load()
	require.Len(t, got, 3)
	for i := range got {
		for j := i + 1; j < len(got); j++ {
			assert.False(t, engine.CodesOverlap(got[i].ID, got[j].ID, config.MaxOffsetDays))
		}
	}
	rec.AssertNumberOfCalls(t, "Reconcile", 2)

	added, err = s.Merge([]engine.BirthdayRecord{{Name: "Aunt", LunarMonth: 5, LunarDay: 5}})
	require.NoError(t, err)
	assert.Zero(t, added)
	rec.AssertNumberOfCalls(t, "Reconcile", 2)
}

func TestStore_DeleteLeavesNoTimers(t *testing.T) {
	clock := MockClock{CurrentTime: fixedNow}
	table := alarm.NewTimerTable(clock, nil)
	scheduler := alarm.NewScheduler(table, engine.NewPlanner(lunar.NewSixTail()), clock)
	s := store.New(newPrefs(t), scheduler, clock)

	grandma, err := s.Add(engine.BirthdayRecord{Name: "Grandma", LunarMonth: 8, LunarDay: 15,
		RemindOffsets: []int{0, 1}, RemindHours: []int{9, 19}})
	require.NoError(t, err)
	_, err = s.Add(engine.BirthdayRecord{Name: "Uncle", LunarMonth: 8, LunarDay: 20})
	require.NoError(t, err)
	require.Equal(t, 5, table.Len())

	require.NoError(t, s.Delete(grandma.ID))

	sweep := engine.SweepCodes(grandma.ID, config.MaxOffsetDays)
	for _, e := range table.Entries() {
		assert.NotContains(t, sweep, e.Code)
		assert.Equal(t, "Uncle", e.Payload.Name)
	}
	assert.Equal(t, 1, table.Len())
}

// gateReconciler blocks its first call until released and records every list
// it is handed.
type gateReconciler struct {
	mu      sync.Mutex
	entered chan struct{}
	release chan struct{}
	seen    [][]engine.BirthdayRecord
}

func (g *gateReconciler) Reconcile(records []engine.BirthdayRecord) int {
	g.mu.Lock()
	g.seen = append(g.seen, records)
	first := len(g.seen) == 1
	g.mu.Unlock()
	if first {
		close(g.entered)
		<-g.release
	}
	return len(records)
}

func (g *gateReconciler) calls() [][]engine.BirthdayRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]engine.BirthdayRecord(nil), g.seen...)
}

func TestReconcile_SerializedWithMutations(t *testing.T) {
	prefs := newPrefs(t)
	seed := store.New(prefs, nil, MockClock{CurrentTime: fixedNow})
	require.NoError(t, seed.Save([]engine.BirthdayRecord{
		{ID: 1000, Name: "Grandma", LunarMonth: 8, LunarDay: 15},
		{ID: 1001, Name: "Uncle", LunarMonth: 8, LunarDay: 20},
	}))

	gate := &gateReconciler{entered: make(chan struct{}), release: make(chan struct{})}
	s := store.New(prefs, gate, MockClock{CurrentTime: fixedNow})

	reconciled := make(chan []engine.BirthdayRecord, 1)
	go func() { reconciled <- s.Reconcile() }()
	<-gate.entered

	deleted := make(chan error, 1)
	go func() { deleted <- s.Delete(1000) }()

	assert.Never(t, func() bool { return len(deleted) > 0 }, 50*time.Millisecond, 10*time.Millisecond,
		"Delete must wait for the running reconcile")

	close(gate.release)
	assert.Len(t, <-reconciled, 2)
	require.NoError(t, <-deleted)

	calls := gate.calls()
	require.Len(t, calls, 2)
	last := calls[len(calls)-1]
	require.Len(t, last, 1)
	assert.Equal(t, int64(1001), last[0].ID)
}

func TestReconcile_AfterDeleteLeavesNoTimers(t *testing.T) {
	clock := MockClock{CurrentTime: fixedNow}
	table := alarm.NewTimerTable(clock, nil)
	scheduler := alarm.NewScheduler(table, engine.NewPlanner(lunar.NewSixTail()), clock)
	s := store.New(newPrefs(t), scheduler, clock)

	grandma, err := s.Add(engine.BirthdayRecord{Name: "Grandma", LunarMonth: 8, LunarDay: 15,
		RemindOffsets: []int{0, 1}, RemindHours: []int{9, 19}})
	require.NoError(t, err)
	require.NoError(t, s.Delete(grandma.ID))

	assert.Empty(t, s.Reconcile())
	assert.Zero(t, table.Len())
}
