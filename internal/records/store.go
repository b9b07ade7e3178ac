// Package records implements the behavioral record stores over SQLite.
// The five read interfaces consumed by the context builder, plus the
// consent registry, all share one database handle.
package records

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sagecoach/engine/internal/signals"
)

const schema = `
CREATE TABLE IF NOT EXISTS habit_logs (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id   TEXT NOT NULL,
	habit_id  TEXT NOT NULL,
	day       TEXT NOT NULL,
	logged_at TEXT NOT NULL,
	completed INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_habit_logs_user ON habit_logs(user_id, day);

CREATE TABLE IF NOT EXISTS tasks (
	task_id           TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	due_at            TEXT,
	completed_at      TEXT,
	estimated_minutes INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, created_at);

CREATE TABLE IF NOT EXISTS journal_entries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	mood       INTEGER NOT NULL,
	sentiment  REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_user ON journal_entries(user_id, created_at);

CREATE TABLE IF NOT EXISTS transactions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	amount     REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, created_at);

CREATE TABLE IF NOT EXISTS streaks (
	user_id     TEXT PRIMARY KEY,
	current     INTEGER NOT NULL DEFAULT 0,
	longest     INTEGER NOT NULL DEFAULT 0,
	last_active TEXT
);

CREATE TABLE IF NOT EXISTS consent (
	user_id    TEXT PRIMARY KEY,
	granted    INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);
`

// Store reads and writes behavioral records. It satisfies the five
// source interfaces in the signals package.
type Store struct {
	db *sql.DB
}

// New initializes the record tables and returns a store.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("records schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Sources returns the signal source bundle backed by this store.
func (s *Store) Sources() signals.Sources {
	return signals.Sources{
		Habits:  s,
		Tasks:   s,
		Journal: s,
		Finance: s,
		Streaks: s,
	}
}

// #region reads

// HabitLogsSince returns habit logs on or after since, oldest first.
func (s *Store) HabitLogsSince(ctx context.Context, userID string, since time.Time, limit int) ([]signals.HabitLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT habit_id, day, logged_at, completed FROM habit_logs
		 WHERE user_id = ? AND day >= ?
		 ORDER BY day ASC, id ASC LIMIT ?`,
		userID, since.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("habit logs: %w", err)
	}
	defer rows.Close()

	var out []signals.HabitLog
	for rows.Next() {
		var l signals.HabitLog
		var day, logged string
		var completed int
		if err := rows.Scan(&l.HabitID, &day, &logged, &completed); err != nil {
			return nil, fmt.Errorf("scan habit log: %w", err)
		}
		l.Day, _ = time.Parse(time.RFC3339Nano, day)
		l.LoggedAt, _ = time.Parse(time.RFC3339Nano, logged)
		l.Completed = completed != 0
		out = append(out, l)
	}
	return out, rows.Err()
}

// TasksSince returns tasks created on or after since, oldest first.
func (s *Store) TasksSince(ctx context.Context, userID string, since time.Time, limit int) ([]signals.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, created_at, due_at, completed_at, estimated_minutes FROM tasks
		 WHERE user_id = ? AND created_at >= ?
		 ORDER BY created_at ASC LIMIT ?`,
		userID, since.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("tasks: %w", err)
	}
	defer rows.Close()

	var out []signals.Task
	for rows.Next() {
		var t signals.Task
		var created string
		var due, completed sql.NullString
		if err := rows.Scan(&t.TaskID, &created, &due, &completed, &t.EstimatedMinutes); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		if due.Valid {
			t.DueAt, _ = time.Parse(time.RFC3339Nano, due.String)
		}
		if completed.Valid {
			t.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed.String)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// EntriesSince returns journal entries on or after since, newest first.
func (s *Store) EntriesSince(ctx context.Context, userID string, since time.Time, limit int) ([]signals.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at, mood, sentiment FROM journal_entries
		 WHERE user_id = ? AND created_at >= ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, since.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("journal entries: %w", err)
	}
	defer rows.Close()

	var out []signals.JournalEntry
	for rows.Next() {
		var e signals.JournalEntry
		var created string
		if err := rows.Scan(&created, &e.Mood, &e.Sentiment); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// TransactionsSince returns transactions on or after since, oldest first.
func (s *Store) TransactionsSince(ctx context.Context, userID string, since time.Time, limit int) ([]signals.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at, amount FROM transactions
		 WHERE user_id = ? AND created_at >= ?
		 ORDER BY created_at ASC LIMIT ?`,
		userID, since.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	defer rows.Close()

	var out []signals.Transaction
	for rows.Next() {
		var t signals.Transaction
		var created string
		if err := rows.Scan(&created, &t.Amount); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Streak returns the user's streak record. The second return is false
// when the user has no streak row.
func (s *Store) Streak(ctx context.Context, userID string) (signals.StreakRecord, bool, error) {
	var rec signals.StreakRecord
	var lastActive sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT current, longest, last_active FROM streaks WHERE user_id = ?`,
		userID).Scan(&rec.Current, &rec.Longest, &lastActive)
	if err == sql.ErrNoRows {
		return signals.StreakRecord{}, false, nil
	}
	if err != nil {
		return signals.StreakRecord{}, false, fmt.Errorf("streak: %w", err)
	}
	if lastActive.Valid {
		rec.LastActive, _ = time.Parse(time.RFC3339Nano, lastActive.String)
	}
	return rec, true, nil
}

// #endregion reads

// #region writes

// AddHabitLog inserts one habit log.
func (s *Store) AddHabitLog(ctx context.Context, userID string, log signals.HabitLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO habit_logs (user_id, habit_id, day, logged_at, completed)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, log.HabitID,
		log.Day.UTC().Format(time.RFC3339Nano),
		log.LoggedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(log.Completed))
	if err != nil {
		return fmt.Errorf("add habit log: %w", err)
	}
	return nil
}

// AddTask inserts or replaces one task.
func (s *Store) AddTask(ctx context.Context, userID string, task signals.Task) error {
	var due, completed interface{}
	if !task.DueAt.IsZero() {
		due = task.DueAt.UTC().Format(time.RFC3339Nano)
	}
	if !task.CompletedAt.IsZero() {
		completed = task.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, user_id, created_at, due_at, completed_at, estimated_minutes)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET
		   due_at = excluded.due_at,
		   completed_at = excluded.completed_at,
		   estimated_minutes = excluded.estimated_minutes`,
		task.TaskID, userID,
		task.CreatedAt.UTC().Format(time.RFC3339Nano),
		due, completed, task.EstimatedMinutes)
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	return nil
}

// AddJournalEntry inserts one journal entry.
func (s *Store) AddJournalEntry(ctx context.Context, userID string, entry signals.JournalEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal_entries (user_id, created_at, mood, sentiment)
		 VALUES (?, ?, ?, ?)`,
		userID, entry.CreatedAt.UTC().Format(time.RFC3339Nano), entry.Mood, entry.Sentiment)
	if err != nil {
		return fmt.Errorf("add journal entry: %w", err)
	}
	return nil
}

// AddTransaction inserts one finance transaction.
func (s *Store) AddTransaction(ctx context.Context, userID string, tx signals.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, created_at, amount) VALUES (?, ?, ?)`,
		userID, tx.CreatedAt.UTC().Format(time.RFC3339Nano), tx.Amount)
	if err != nil {
		return fmt.Errorf("add transaction: %w", err)
	}
	return nil
}

// SetStreak upserts the user's streak record.
func (s *Store) SetStreak(ctx context.Context, userID string, rec signals.StreakRecord) error {
	var lastActive interface{}
	if !rec.LastActive.IsZero() {
		lastActive = rec.LastActive.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO streaks (user_id, current, longest, last_active)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   current = excluded.current,
		   longest = excluded.longest,
		   last_active = excluded.last_active`,
		userID, rec.Current, rec.Longest, lastActive)
	if err != nil {
		return fmt.Errorf("set streak: %w", err)
	}
	return nil
}

// #endregion writes

// #region consent

// Consent reports whether the user has granted coaching consent.
// Absent rows mean consent was never granted.
func (s *Store) Consent(ctx context.Context, userID string) (bool, error) {
	var granted int
	err := s.db.QueryRowContext(ctx,
		`SELECT granted FROM consent WHERE user_id = ?`, userID).Scan(&granted)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consent: %w", err)
	}
	return granted != 0, nil
}

// SetConsent records the user's consent state.
func (s *Store) SetConsent(ctx context.Context, userID string, granted bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consent (user_id, granted, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   granted = excluded.granted,
		   updated_at = excluded.updated_at`,
		userID, boolToInt(granted), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set consent: %w", err)
	}
	return nil
}

// #endregion consent

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
