package signals

import (
	"context"
	"math"
	"sync"
	"time"
)

// #region builder

// Builder aggregates raw behavioral records into a UserContext.
type Builder struct {
	sources Sources
	config  BuilderConfig
	now     func() time.Time
}

// NewBuilder creates a context builder over the given read collaborators.
func NewBuilder(sources Sources, config BuilderConfig) *Builder {
	return &Builder{sources: sources, config: config, now: time.Now}
}

// NewBuilderWithClock creates a builder with an injected clock for tests.
func NewBuilderWithClock(sources Sources, config BuilderConfig, now func() time.Time) *Builder {
	return &Builder{sources: sources, config: config, now: now}
}

// #endregion builder

// #region build

// fetched holds the raw results of the fan-out. A nil store or a fetch
// error leaves the slot empty; missing data lowers DataQuality instead of
// failing the build.
type fetched struct {
	habits    []HabitLog
	tasks     []Task
	journal   []JournalEntry
	finance   []Transaction
	streak    StreakRecord
	hasStreak bool
}

// Build fetches the five sources concurrently, joins, and derives the
// normalized context. It never fails on empty or partial source data.
func (b *Builder) Build(ctx context.Context, userID string) (UserContext, error) {
	now := b.now()
	since := now.Add(-b.config.Window)
	limit := b.config.FetchLimit

	var f fetched
	var wg sync.WaitGroup

	if b.sources.Habits != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.habits, _ = b.sources.Habits.HabitLogsSince(ctx, userID, since, limit)
		}()
	}
	if b.sources.Tasks != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.tasks, _ = b.sources.Tasks.TasksSince(ctx, userID, since, limit)
		}()
	}
	if b.sources.Journal != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.journal, _ = b.sources.Journal.EntriesSince(ctx, userID, since, limit)
		}()
	}
	if b.sources.Finance != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.finance, _ = b.sources.Finance.TransactionsSince(ctx, userID, since, limit)
		}()
	}
	if b.sources.Streaks != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.streak, f.hasStreak, _ = b.sources.Streaks.Streak(ctx, userID)
		}()
	}
	wg.Wait()

	return b.derive(userID, now, f), ctx.Err()
}

// #endregion build

// #region derive

func (b *Builder) derive(userID string, now time.Time, f fetched) UserContext {
	uc := UserContext{
		UserID:    userID,
		Hour:      now.Hour(),
		Weekday:   now.Weekday(),
		IsWeekend: now.Weekday() == time.Saturday || now.Weekday() == time.Sunday,
		BuiltAt:   now,
		Sentiment: 0.5,
		LastMood:  3,
	}

	// Habits.
	rates := dailyRates(f.habits, now)
	uc.HabitRate = completionRate(f.habits)
	uc.HabitVariance = clamp01(variance(rates) / b.config.MaxVariance)
	uc.Momentum = momentum(rates)
	uc.HabitsDone, uc.HabitsTotal = todayHabits(f.habits, now)

	// Tasks.
	var open, overdue, done, dueToday, dueMinutes int
	for _, t := range f.tasks {
		if t.Done() {
			done++
			continue
		}
		open++
		if t.Overdue(now) {
			overdue++
		}
		if sameDay(t.DueAt, now) {
			dueToday++
			dueMinutes += t.EstimatedMinutes
		}
	}
	uc.PendingTasks = open
	uc.TasksDueToday = dueToday
	uc.TaskOverdue = float64(overdue) / math.Max(float64(open), 1)
	uc.TaskCompletion = float64(done) / math.Max(float64(len(f.tasks)), 1)

	// Journal: entries are newest first.
	if len(f.journal) > 0 {
		uc.Sentiment = clamp01(f.journal[0].Sentiment)
		uc.LastMood = f.journal[0].Mood
	}

	// Finance: inflow share of total flow, 0.5 when no activity.
	uc.FinancialHealth = financialHealth(f.finance)

	// Streak.
	if f.hasStreak {
		uc.Streak = f.streak.Current
	}
	uc.DaysSinceActivity = daysSinceActivity(f, now, b.config.Window)

	// Burnout: weighted blend of overload, streak pressure, task stress,
	// and inverted mood trend.
	overload := clamp01(float64(dueMinutes) / b.config.DueMinutesPerDay)
	streakPressure := clamp01(float64(uc.Streak) / 21)
	taskStress := uc.TaskOverdue
	uc.BurnoutRisk = clamp01(0.35*overload + 0.15*streakPressure +
		0.25*taskStress + 0.25*(1-moodTrend(f.journal)))

	// Data quality: fraction of the five checked sources with any data.
	checked := 5
	present := 0
	if len(f.habits) > 0 {
		present++
	}
	if len(f.tasks) > 0 {
		present++
	}
	if len(f.journal) > 0 {
		present++
	}
	if len(f.finance) > 0 {
		present++
	}
	if f.hasStreak {
		present++
	}
	uc.DataQuality = float64(present) / float64(checked)

	return uc
}

// #endregion derive

// #region habit-helpers

// completionRate is completed/total over all logs in the window.
func completionRate(logs []HabitLog) float64 {
	if len(logs) == 0 {
		return 0
	}
	completed := 0
	for _, l := range logs {
		if l.Completed {
			completed++
		}
	}
	return float64(completed) / float64(len(logs))
}

// dailyRates groups logs by calendar day and returns per-day completion
// rates in ascending day order. Calendar days with no logs between the
// first logged day and yesterday rate 0, so a trailing gap in activity
// reads as missed days instead of vanishing from the series.
func dailyRates(logs []HabitLog, now time.Time) []float64 {
	type bucket struct{ done, total int }
	byDay := make(map[string]*bucket)
	var first, last time.Time
	for _, l := range logs {
		k := l.Day.Format("2006-01-02")
		bk, ok := byDay[k]
		if !ok {
			bk = &bucket{}
			byDay[k] = bk
		}
		bk.total++
		if l.Completed {
			bk.done++
		}
		if first.IsZero() || l.Day.Before(first) {
			first = l.Day
		}
		if l.Day.After(last) {
			last = l.Day
		}
	}
	if len(byDay) == 0 {
		return nil
	}
	end := now.AddDate(0, 0, -1)
	if last.After(end) {
		end = last
	}
	endKey := end.Format("2006-01-02")
	var rates []float64
	for d := first; ; d = d.AddDate(0, 0, 1) {
		k := d.Format("2006-01-02")
		if bk, ok := byDay[k]; ok {
			rates = append(rates, float64(bk.done)/math.Max(float64(bk.total), 1))
		} else {
			rates = append(rates, 0)
		}
		if k >= endKey {
			break
		}
	}
	return rates
}

// momentum compares the last three daily rates against the earlier
// baseline: clamp(0.5 + recent − earlier). 0.5 when there is no baseline.
func momentum(rates []float64) float64 {
	if len(rates) < 4 {
		return 0.5
	}
	recent := mean(rates[len(rates)-3:])
	earlier := mean(rates[:len(rates)-3])
	return clamp01(0.5 + recent - earlier)
}

func todayHabits(logs []HabitLog, now time.Time) (done, total int) {
	for _, l := range logs {
		if sameDay(l.Day, now) {
			total++
			if l.Completed {
				done++
			}
		}
	}
	return done, total
}

// #endregion habit-helpers

// #region misc-helpers

// financialHealth is the inflow share of total absolute flow. No activity
// yields the neutral 0.5.
func financialHealth(txs []Transaction) float64 {
	if len(txs) == 0 {
		return 0.5
	}
	var inflow, total float64
	for _, tx := range txs {
		total += math.Abs(tx.Amount)
		if tx.Amount > 0 {
			inflow += tx.Amount
		}
	}
	return clamp01(inflow / math.Max(total, 1))
}

// moodTrend averages the last three journal moods onto [0,1]. 0.5 when no
// entries exist.
func moodTrend(entries []JournalEntry) float64 {
	if len(entries) == 0 {
		return 0.5
	}
	n := len(entries)
	if n > 3 {
		n = 3
	}
	var sum float64
	for _, e := range entries[:n] {
		sum += float64(e.Mood-1) / 4
	}
	return clamp01(sum / float64(n))
}

func daysSinceActivity(f fetched, now time.Time, window time.Duration) float64 {
	var last time.Time
	for _, l := range f.habits {
		if l.Day.After(last) {
			last = l.Day
		}
	}
	if f.hasStreak && f.streak.LastActive.After(last) {
		last = f.streak.LastActive
	}
	if last.IsZero() {
		return window.Hours() / 24
	}
	days := now.Sub(last).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var v float64
	for _, x := range xs {
		d := x - m
		v += d * d
	}
	return v / float64(len(xs))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// clamp01 restricts v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion misc-helpers
