package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSources implements every source interface with canned data.
type fakeSources struct {
	habits    []HabitLog
	tasks     []Task
	journal   []JournalEntry
	finance   []Transaction
	streak    StreakRecord
	hasStreak bool
	err       error
}

func (f *fakeSources) HabitLogsSince(context.Context, string, time.Time, int) ([]HabitLog, error) {
	return f.habits, f.err
}
func (f *fakeSources) TasksSince(context.Context, string, time.Time, int) ([]Task, error) {
	return f.tasks, f.err
}
func (f *fakeSources) EntriesSince(context.Context, string, time.Time, int) ([]JournalEntry, error) {
	return f.journal, f.err
}
func (f *fakeSources) TransactionsSince(context.Context, string, time.Time, int) ([]Transaction, error) {
	return f.finance, f.err
}
func (f *fakeSources) Streak(context.Context, string) (StreakRecord, bool, error) {
	return f.streak, f.hasStreak, f.err
}

func (f *fakeSources) bundle() Sources {
	return Sources{Habits: f, Tasks: f, Journal: f, Finance: f, Streaks: f}
}

// fixedNow is a Wednesday at 14:00.
var fixedNow = time.Date(2025, 6, 11, 14, 0, 0, 0, time.UTC)

func newTestBuilder(f *fakeSources) *Builder {
	return NewBuilderWithClock(f.bundle(), DefaultBuilderConfig(), func() time.Time { return fixedNow })
}

func day(offset int) time.Time {
	return fixedNow.AddDate(0, 0, offset)
}

func TestBuildEmptySources(t *testing.T) {
	b := newTestBuilder(&fakeSources{})
	uc, err := b.Build(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 0.0, uc.DataQuality)
	assert.Equal(t, 0.5, uc.Sentiment)
	assert.Equal(t, 3, uc.LastMood)
	assert.Equal(t, 0.5, uc.Momentum)
	assert.Equal(t, 0.5, uc.FinancialHealth)
	assert.Equal(t, 14, uc.Hour)
	assert.False(t, uc.IsWeekend)
	// No activity at all: days-since falls back to the full window.
	assert.InDelta(t, 30.0, uc.DaysSinceActivity, 0.01)
}

func TestBuildToleratesSourceErrors(t *testing.T) {
	b := newTestBuilder(&fakeSources{err: errors.New("source down")})
	uc, err := b.Build(context.Background(), "u1")
	require.NoError(t, err, "a failing source lowers quality, never fails the build")
	assert.Equal(t, 0.0, uc.DataQuality)
}

func TestBuildDataQualityCountsPresentSources(t *testing.T) {
	f := &fakeSources{
		habits:    []HabitLog{{HabitID: "h1", Day: day(-1), Completed: true}},
		journal:   []JournalEntry{{CreatedAt: day(-1), Mood: 4, Sentiment: 0.7}},
		hasStreak: true,
		streak:    StreakRecord{Current: 5, LastActive: day(-1)},
	}
	uc, err := newTestBuilder(f).Build(context.Background(), "u1")
	require.NoError(t, err)
	assert.InDelta(t, 3.0/5.0, uc.DataQuality, 1e-9)
}

func TestBuildHabitMetrics(t *testing.T) {
	var habits []HabitLog
	// 10 days, one habit per day, completed on 8 of them.
	for i := 1; i <= 10; i++ {
		habits = append(habits, HabitLog{
			HabitID:   "h1",
			Day:       day(-i),
			Completed: i > 2, // the 2 most recent days missed
		})
	}
	uc, err := newTestBuilder(&fakeSources{habits: habits}).Build(context.Background(), "u1")
	require.NoError(t, err)

	assert.InDelta(t, 0.8, uc.HabitRate, 1e-9)
	// Recent days are worse than the baseline, so momentum drops below 0.5.
	assert.Less(t, uc.Momentum, 0.5)
}

func TestBuildMomentumRisingStreak(t *testing.T) {
	var habits []HabitLog
	// Ten days of misses followed by three perfect days.
	for i := 13; i >= 4; i-- {
		habits = append(habits, HabitLog{HabitID: "h1", Day: day(-i), Completed: false})
	}
	for i := 3; i >= 1; i-- {
		habits = append(habits, HabitLog{HabitID: "h1", Day: day(-i), Completed: true})
	}
	uc, err := newTestBuilder(&fakeSources{habits: habits}).Build(context.Background(), "u1")
	require.NoError(t, err)
	assert.Greater(t, uc.Momentum, 0.9, "recovery after a break should read as strong momentum")
}

func TestBuildMomentumDropsAfterTrailingGap(t *testing.T) {
	var habits []HabitLog
	// A week of perfect completion, then three days of silence.
	for i := 10; i >= 4; i-- {
		habits = append(habits, HabitLog{HabitID: "h1", Day: day(-i), Completed: true})
	}
	uc, err := newTestBuilder(&fakeSources{habits: habits}).Build(context.Background(), "u1")
	require.NoError(t, err)
	assert.Less(t, uc.Momentum, 0.5, "unlogged days must count as misses, not disappear")
}

func TestBuildTaskMetrics(t *testing.T) {
	f := &fakeSources{tasks: []Task{
		{TaskID: "t1", CreatedAt: day(-5), DueAt: day(-1)},                         // overdue
		{TaskID: "t2", CreatedAt: day(-5), DueAt: fixedNow.Add(2 * time.Hour)},     // due today
		{TaskID: "t3", CreatedAt: day(-5), DueAt: day(3)},                          // open
		{TaskID: "t4", CreatedAt: day(-5), DueAt: day(-2), CompletedAt: day(-2)},   // done
	}}
	uc, err := newTestBuilder(f).Build(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, uc.PendingTasks)
	assert.Equal(t, 1, uc.TasksDueToday)
	assert.InDelta(t, 1.0/3.0, uc.TaskOverdue, 1e-9)
	assert.InDelta(t, 0.25, uc.TaskCompletion, 1e-9)
}

func TestBuildJournalNewestFirst(t *testing.T) {
	f := &fakeSources{journal: []JournalEntry{
		{CreatedAt: day(-1), Mood: 5, Sentiment: 0.9},
		{CreatedAt: day(-2), Mood: 1, Sentiment: 0.1},
	}}
	uc, err := newTestBuilder(f).Build(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, uc.LastMood)
	assert.InDelta(t, 0.9, uc.Sentiment, 1e-9)
}

func TestBuildFinancialHealth(t *testing.T) {
	f := &fakeSources{finance: []Transaction{
		{CreatedAt: day(-3), Amount: 300},
		{CreatedAt: day(-2), Amount: -100},
	}}
	uc, err := newTestBuilder(f).Build(context.Background(), "u1")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, uc.FinancialHealth, 1e-9)
}

func TestBuildBurnoutRisesWithLoad(t *testing.T) {
	calm := &fakeSources{
		journal: []JournalEntry{{CreatedAt: day(-1), Mood: 5, Sentiment: 0.9}},
	}
	loaded := &fakeSources{
		journal: []JournalEntry{
			{CreatedAt: day(-1), Mood: 1, Sentiment: 0.1},
			{CreatedAt: day(-2), Mood: 2, Sentiment: 0.2},
			{CreatedAt: day(-3), Mood: 1, Sentiment: 0.1},
		},
		tasks: []Task{
			{TaskID: "t1", CreatedAt: day(-5), DueAt: day(-1)},
			{TaskID: "t2", CreatedAt: day(-5), DueAt: day(-2)},
			{TaskID: "t3", CreatedAt: day(-4), DueAt: fixedNow.Add(time.Hour), EstimatedMinutes: 480},
		},
		hasStreak: true,
		streak:    StreakRecord{Current: 25, LastActive: day(-1)},
	}

	calmUC, err := newTestBuilder(calm).Build(context.Background(), "u1")
	require.NoError(t, err)
	loadedUC, err := newTestBuilder(loaded).Build(context.Background(), "u1")
	require.NoError(t, err)

	assert.Greater(t, loadedUC.BurnoutRisk, calmUC.BurnoutRisk)
	assert.Greater(t, loadedUC.BurnoutRisk, 0.6)
}

func TestVectorBounds(t *testing.T) {
	// Deliberately out-of-range inputs must still yield a [0,1] vector.
	uc := UserContext{
		HabitRate:         1.5,
		TaskOverdue:       2.0,
		Hour:              23,
		Weekday:           time.Saturday,
		IsWeekend:         true,
		DaysSinceActivity: 100,
		PendingTasks:      500,
		TasksDueToday:     50,
		HabitsDone:        9,
		HabitsTotal:       3,
		Streak:            400,
		LastMood:          5,
		DataQuality:       1,
	}
	v := Vector(uc)
	for i, x := range v {
		assert.GreaterOrEqual(t, x, 0.0, "index %d", i)
		assert.LessOrEqual(t, x, 1.0, "index %d", i)
	}
	assert.Equal(t, 1.0, v[10])
}

func TestVectorDeterministic(t *testing.T) {
	uc := UserContext{HabitRate: 0.6, Sentiment: 0.4, Hour: 9, LastMood: 4, Streak: 12}
	assert.Equal(t, Vector(uc), Vector(uc))
}

func TestVectorIndexContract(t *testing.T) {
	uc := UserContext{
		HabitRate:   0.6,
		Sentiment:   0.8,
		Momentum:    0.7,
		Hour:        23,
		LastMood:    5,
		Streak:      30,
		DataQuality: 0.4,
	}
	v := Vector(uc)
	assert.InDelta(t, 0.6, v[0], 1e-9)
	assert.InDelta(t, 0.8, v[4], 1e-9)
	assert.InDelta(t, 0.7, v[6], 1e-9)
	assert.InDelta(t, 1.0, v[8], 1e-9)
	assert.InDelta(t, 1.0, v[16], 1e-9)
	assert.InDelta(t, 1.0, v[15], 1e-9)
	assert.InDelta(t, 0.4, v[17], 1e-9)
}
