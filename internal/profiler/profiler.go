package profiler

import (
	"context"
	"sort"
	"time"

	"github.com/sagecoach/engine/internal/memory"
	"github.com/sagecoach/engine/internal/signals"
)

// #region config

// Config holds tuning constants for DNA generation.
type Config struct {
	HistoryDays      int     // how far back to read source history
	FetchLimit       int     // per-source record cap
	MomentumBaseline float64 // fixed momentum constant for score projections
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HistoryDays:      180,
		FetchLimit:       1000,
		MomentumBaseline: 0.6,
	}
}

// #endregion config

// #region feedback-source

// FeedbackSource reads recent coaching feedback for a user.
type FeedbackSource interface {
	RecentFeedback(ctx context.Context, userID string, limit int) ([]memory.Feedback, error)
}

// #endregion feedback-source

// #region profiler

// Profiler computes behavioral DNA snapshots from source history.
type Profiler struct {
	sources  signals.Sources
	feedback FeedbackSource
	config   Config
	now      func() time.Time
}

// New creates a profiler over the given collaborators.
func New(sources signals.Sources, feedback FeedbackSource, config Config) *Profiler {
	return &Profiler{sources: sources, feedback: feedback, config: config, now: time.Now}
}

// NewWithClock creates a profiler with an injected clock for tests.
func NewWithClock(sources signals.Sources, feedback FeedbackSource, config Config, now func() time.Time) *Profiler {
	return &Profiler{sources: sources, feedback: feedback, config: config, now: now}
}

// #endregion profiler

// #region generate

// Generate computes a fresh DNA snapshot for a user. Idempotent and safe
// to invoke concurrently; versioning happens at persistence time.
func (p *Profiler) Generate(ctx context.Context, userID string) (DNA, error) {
	now := p.now()
	since := now.AddDate(0, 0, -p.config.HistoryDays)

	var habits []signals.HabitLog
	var journal []signals.JournalEntry
	var feedback []memory.Feedback

	if p.sources.Habits != nil {
		habits, _ = p.sources.Habits.HabitLogsSince(ctx, userID, since, p.config.FetchLimit)
	}
	if p.sources.Journal != nil {
		journal, _ = p.sources.Journal.EntriesSince(ctx, userID, since, p.config.FetchLimit)
	}
	if p.feedback != nil {
		feedback, _ = p.feedback.RecentFeedback(ctx, userID, 200)
	}

	chrono := chronotype(habits, journal)
	discipline := disciplineProfile(habits, feedback)
	dropout := dropoutSignals(habits, journal, now)
	predictions := predict(dropout, discipline, p.config.MomentumBaseline)

	return DNA{
		UserID:         userID,
		Chronotype:     chrono,
		Discipline:     discipline,
		Dropout:        dropout,
		Transformation: transformation(discipline, predictions),
		Predictions:    predictions,
		TwinIDs:        nil, // intentionally empty, see types.go
		GeneratedAt:    now,
	}, ctx.Err()
}

// #endregion generate

// #region chronotype

var (
	fallbackPeakHours = [3]int{9, 14, 20}
	fallbackLowHours  = [3]int{3, 4, 5}
)

// chronotype buckets activity events by hour of day and classifies the
// weekend/weekday ratio.
func chronotype(habits []signals.HabitLog, journal []signals.JournalEntry) Chronotype {
	var counts [24]int
	var weekend, weekday float64
	var weekendDays, weekdayDays float64 = 2, 5
	total := 0

	record := func(ts time.Time) {
		if ts.IsZero() {
			return
		}
		counts[ts.Hour()]++
		total++
		if ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
			weekend++
		} else {
			weekday++
		}
	}
	for _, h := range habits {
		record(h.LoggedAt)
	}
	for _, e := range journal {
		record(e.CreatedAt)
	}

	if total == 0 {
		return Chronotype{
			PeakHours:      fallbackPeakHours,
			LowHours:       fallbackLowHours,
			WeekendPattern: "similar",
		}
	}

	hours := make([]int, 24)
	for i := range hours {
		hours[i] = i
	}
	sort.SliceStable(hours, func(i, j int) bool {
		return counts[hours[i]] > counts[hours[j]]
	})

	var ct Chronotype
	copy(ct.PeakHours[:], hours[:3])
	low := []int{hours[21], hours[22], hours[23]}
	sort.Ints(low)
	copy(ct.LowHours[:], low)

	weekendAvg := weekend / weekendDays
	weekdayAvg := weekday / weekdayDays
	ratio := 0.0
	if weekdayAvg > 0 {
		ratio = weekendAvg / weekdayAvg
	}
	switch {
	case ratio >= 0.8 && ratio <= 1.2:
		ct.WeekendPattern = "similar"
	case ratio < 0.5:
		ct.WeekendPattern = "different"
	default:
		ct.WeekendPattern = "inverted"
	}
	return ct
}

// #endregion chronotype

// #region discipline

func disciplineProfile(habits []signals.HabitLog, feedback []memory.Feedback) DisciplineProfile {
	completed := 0
	for _, h := range habits {
		if h.Completed {
			completed++
		}
	}
	completionRate := 0.0
	if len(habits) > 0 {
		completionRate = float64(completed) / float64(len(habits))
	}

	helpful := 0
	for _, f := range feedback {
		if f.Helpful {
			helpful++
		}
	}
	helpfulRate := 0.5
	if len(feedback) > 0 {
		helpfulRate = float64(helpful) / float64(len(feedback))
	}

	// Recovery speed stays a coarse constant until gap-to-return spans are
	// actually measured.
	recovery := 3
	if len(habits) > 0 {
		recovery = 2
	}

	motivation := []string{"progress_visibility", "small_wins"}
	demotivation := []string{"all_or_nothing", "comparison"}
	if completionRate > 0.7 {
		motivation = append([]string{"streaks"}, motivation...)
	}
	if len(habits) > 0 && float64(len(habits)-completed)/float64(len(habits)) > 0.3 {
		demotivation = append([]string{"overwhelm"}, demotivation...)
	}

	return DisciplineProfile{
		StreakSensitivity:    (completionRate + helpfulRate) / 2,
		RecoverySpeedDays:    recovery,
		MotivationTriggers:   motivation,
		DemotivationTriggers: demotivation,
	}
}

// #endregion discipline

// #region dropout

// Signal weights. Early warnings and immediate triggers sum into the
// 72-hour dropout risk when detected.
const (
	weightActivityDecline = 0.30
	weightMoodDecline     = 0.25
	weightHabitBreaks     = 0.20
	weightStreakBreak     = 0.35
	weightInactivity24h   = 0.30
	weightQuickReturn     = 0.30
)

func dropoutSignals(habits []signals.HabitLog, journal []signals.JournalEntry, now time.Time) DropoutSignals {
	return DropoutSignals{
		EarlyWarnings: []DropoutSignal{
			{Type: "activity_decline", Weight: weightActivityDecline, Detected: detectActivityDecline(habits, now)},
			{Type: "mood_decline", Weight: weightMoodDecline, Detected: detectMoodDecline(journal)},
			{Type: "habit_breaks", Weight: weightHabitBreaks, Detected: detectHabitBreaks(habits)},
		},
		ImmediateTriggers: []DropoutSignal{
			{Type: "streak_break", Weight: weightStreakBreak, Detected: detectStreakBreak(habits)},
			{Type: "inactivity_24h", Weight: weightInactivity24h, Detected: detectInactivity(habits, journal, now)},
		},
		RecoveryIndicators: []DropoutSignal{
			{Type: "quick_return", Weight: weightQuickReturn, Detected: detectQuickReturn(habits)},
		},
	}
}

// detectActivityDecline compares the last 7 days of activity against the
// preceding 7, and additionally treats a trailing gap of 3+ days since the
// most recent log as a decline. The week-over-week halving alone cannot see
// a user who was fully active and then stopped cold.
func detectActivityDecline(habits []signals.HabitLog, now time.Time) bool {
	if len(habits) == 0 {
		return false
	}
	recent, earlier := 0, 0
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)
	last := habits[0].Day
	for _, h := range habits {
		if h.Day.After(last) {
			last = h.Day
		}
		switch {
		case h.Day.After(weekAgo):
			recent++
		case h.Day.After(twoWeeksAgo):
			earlier++
		}
	}
	if now.Sub(last) >= 72*time.Hour {
		return true
	}
	return earlier > 0 && recent < earlier/2
}

// detectMoodDecline fires when the last three entries average below 2.5.
func detectMoodDecline(journal []signals.JournalEntry) bool {
	if len(journal) < 3 {
		return false
	}
	sum := 0
	for _, e := range journal[:3] {
		sum += e.Mood
	}
	return float64(sum)/3 < 2.5
}

// detectHabitBreaks fires when 3+ of the last 7 logs are incomplete.
func detectHabitBreaks(habits []signals.HabitLog) bool {
	n := len(habits)
	if n == 0 {
		return false
	}
	recent := lastByDay(habits, 7)
	incomplete := 0
	for _, h := range recent {
		if !h.Completed {
			incomplete++
		}
	}
	return incomplete >= 3
}

// detectStreakBreak fires on a completed→incomplete transition within the
// last 3 logs.
func detectStreakBreak(habits []signals.HabitLog) bool {
	recent := lastByDay(habits, 3)
	for i := 1; i < len(recent); i++ {
		if recent[i-1].Completed && !recent[i].Completed {
			return true
		}
	}
	return false
}

// detectInactivity fires when no activity has landed in the last 24h.
func detectInactivity(habits []signals.HabitLog, journal []signals.JournalEntry, now time.Time) bool {
	cutoff := now.Add(-24 * time.Hour)
	for _, h := range habits {
		if h.Day.After(cutoff) || h.LoggedAt.After(cutoff) {
			return false
		}
	}
	for _, e := range journal {
		if e.CreatedAt.After(cutoff) {
			return false
		}
	}
	return len(habits) > 0 || len(journal) > 0
}

// detectQuickReturn fires on an incomplete→completed transition within the
// last 3 logs: the user came back.
func detectQuickReturn(habits []signals.HabitLog) bool {
	recent := lastByDay(habits, 3)
	for i := 1; i < len(recent); i++ {
		if !recent[i-1].Completed && recent[i].Completed {
			return true
		}
	}
	return false
}

// lastByDay returns the last n logs ordered oldest→newest.
func lastByDay(habits []signals.HabitLog, n int) []signals.HabitLog {
	sorted := make([]signals.HabitLog, len(habits))
	copy(sorted, habits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Day.Before(sorted[j].Day)
	})
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}

// #endregion dropout

// #region predictions

func predict(dropout DropoutSignals, discipline DisciplineProfile, momentumBaseline float64) Predictions {
	risk := 0.0
	for _, s := range dropout.EarlyWarnings {
		if s.Detected {
			risk += s.Weight
		}
	}
	for _, s := range dropout.ImmediateTriggers {
		if s.Detected {
			risk += s.Weight
		}
	}
	if risk > 1 {
		risk = 1
	}

	streakProb := 1 - risk - (1-discipline.StreakSensitivity)*0.2
	if streakProb < 0 {
		streakProb = 0
	}

	return Predictions{
		DropoutRisk72h:       risk,
		StreakProbability30d: streakProb,
		ScoreTrend30d:        0.6*momentumBaseline + 0.4*streakProb,
		ScoreTrend90d:        0.4*momentumBaseline + 0.6*streakProb,
	}
}

func transformation(discipline DisciplineProfile, pred Predictions) TransformationProfile {
	switch {
	case discipline.StreakSensitivity < 0.4:
		return TransformationProfile{Phase: "foundation", Focus: "show up daily"}
	case pred.StreakProbability30d > 0.7:
		return TransformationProfile{Phase: "mastery", Focus: "raise difficulty"}
	default:
		return TransformationProfile{Phase: "momentum", Focus: "protect the streak"}
	}
}

// #endregion predictions
