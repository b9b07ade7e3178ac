package signals

import (
	"context"
	"time"
)

// #region records

// HabitLog is one habit completion record from the habit-log store. Day is
// the calendar day the log belongs to; LoggedAt is when it was recorded.
type HabitLog struct {
	HabitID   string
	Day       time.Time
	LoggedAt  time.Time
	Completed bool
}

// Task is one task record from the task store.
type Task struct {
	TaskID           string
	CreatedAt        time.Time
	DueAt            time.Time
	CompletedAt      time.Time // zero when still open
	EstimatedMinutes int
}

// Done reports whether the task has been completed.
func (t Task) Done() bool { return !t.CompletedAt.IsZero() }

// Overdue reports whether the task is open past its due date as of now.
func (t Task) Overdue(now time.Time) bool {
	return !t.Done() && !t.DueAt.IsZero() && t.DueAt.Before(now)
}

// JournalEntry is one journal record. Mood is a 1-5 self-report;
// Sentiment is a [0,1] score computed at write time.
type JournalEntry struct {
	CreatedAt time.Time
	Mood      int
	Sentiment float64
}

// Transaction is one finance record. Positive amounts are inflows.
type Transaction struct {
	CreatedAt time.Time
	Amount    float64
}

// StreakRecord is the user's current streak state.
type StreakRecord struct {
	Current    int
	Longest    int
	LastActive time.Time
}

// #endregion records

// #region sources

// HabitStore reads habit completion logs.
type HabitStore interface {
	HabitLogsSince(ctx context.Context, userID string, since time.Time, limit int) ([]HabitLog, error)
}

// TaskStore reads task records.
type TaskStore interface {
	TasksSince(ctx context.Context, userID string, since time.Time, limit int) ([]Task, error)
}

// JournalStore reads journal entries, newest first.
type JournalStore interface {
	EntriesSince(ctx context.Context, userID string, since time.Time, limit int) ([]JournalEntry, error)
}

// FinanceStore reads finance transactions.
type FinanceStore interface {
	TransactionsSince(ctx context.Context, userID string, since time.Time, limit int) ([]Transaction, error)
}

// StreakStore reads the user's streak record.
type StreakStore interface {
	Streak(ctx context.Context, userID string) (StreakRecord, bool, error)
}

// Sources bundles the five read collaborators the builder fans out to.
type Sources struct {
	Habits  HabitStore
	Tasks   TaskStore
	Journal JournalStore
	Finance FinanceStore
	Streaks StreakStore
}

// #endregion sources

// #region user-context

// UserContext is the normalized behavioral snapshot built fresh for every
// decision request. It is derived, never persisted.
type UserContext struct {
	UserID string

	// Continuous metrics, all in [0,1].
	HabitRate       float64 // completion rate over the window
	HabitVariance   float64 // 30-day daily-rate variance, normalized
	TaskOverdue     float64 // overdue / open tasks
	TaskCompletion  float64 // done / all tasks
	Sentiment       float64 // latest journal sentiment, 0.5 fallback
	BurnoutRisk     float64
	Momentum        float64
	FinancialHealth float64

	// Temporal features.
	Hour              int
	Weekday           time.Weekday
	IsWeekend         bool
	DaysSinceActivity float64

	// Current-state counters.
	PendingTasks  int
	TasksDueToday int
	HabitsDone    int
	HabitsTotal   int
	Streak        int
	LastMood      int // 1-5, 3 fallback

	// Fraction of the five sources that returned any data.
	DataQuality float64

	BuiltAt time.Time
}

// #endregion user-context

// #region builder-config

// BuilderConfig holds tuning constants for context derivation.
type BuilderConfig struct {
	Window           time.Duration // default history window
	FetchLimit       int           // per-source record cap
	DueMinutesPerDay float64       // overload normalizer (minutes)
	MaxVariance      float64       // assumed max daily-rate variance
}

// DefaultBuilderConfig returns sensible defaults.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Window:           30 * 24 * time.Hour,
		FetchLimit:       500,
		DueMinutesPerDay: 480,
		MaxVariance:      0.25,
	}
}

// #endregion builder-config
