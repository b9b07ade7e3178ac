package experience

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sagecoach/engine/internal/policy"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS experiences (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	context_vector BLOB NOT NULL,
	action         TEXT NOT NULL,
	reward         REAL NOT NULL DEFAULT 0,
	scored         INTEGER NOT NULL DEFAULT 0,
	momentum_before REAL NOT NULL DEFAULT 0,
	overdue_before  REAL NOT NULL DEFAULT 0,
	habit_before    REAL NOT NULL DEFAULT 0,
	momentum_after  REAL NOT NULL DEFAULT 0,
	overdue_after   REAL NOT NULL DEFAULT 0,
	habit_after     REAL NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_experiences_user ON experiences(user_id, created_at);

CREATE TABLE IF NOT EXISTS policy_weights (
	user_id    TEXT NOT NULL,
	action     TEXT NOT NULL,
	weights    BLOB NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (user_id, action)
);
`

// #endregion schema

// #region store
// Store manages the experience log and per-user weight vectors in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New runs migrations against an existing database handle.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by sibling stores.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store

// #region append
// Append inserts a new log entry. Insert-only; completed outcomes go
// through Complete.
func (s *Store) Append(ctx context.Context, exp Experience) error {
	scored := 0
	if exp.Scored {
		scored = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO experiences
		 (id, user_id, context_vector, action, reward, scored,
		  momentum_before, overdue_before, habit_before,
		  momentum_after, overdue_after, habit_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.UserID, encodeVector(exp.Vector), string(exp.Action),
		exp.Reward, scored,
		exp.Before.Momentum, exp.Before.OverdueRatio, exp.Before.HabitRate,
		exp.After.Momentum, exp.After.OverdueRatio, exp.After.HabitRate,
		exp.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append experience: %w", err)
	}
	return nil
}

// Complete records the reward and after-metrics for a pending experience.
func (s *Store) Complete(ctx context.Context, id string, reward float64, after Metrics) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE experiences SET reward = ?, scored = 1,
		 momentum_after = ?, overdue_after = ?, habit_after = ?
		 WHERE id = ?`,
		reward, after.Momentum, after.OverdueRatio, after.HabitRate, id,
	)
	if err != nil {
		return fmt.Errorf("complete experience %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("complete experience %s: not found", id)
	}
	return nil
}

// Get retrieves one experience by id.
func (s *Store) Get(ctx context.Context, id string) (Experience, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, context_vector, action, reward, scored,
		        momentum_before, overdue_before, habit_before,
		        momentum_after, overdue_after, habit_after, created_at
		 FROM experiences WHERE id = ?`, id)
	exp, err := scanExperience(row)
	if err == sql.ErrNoRows {
		return Experience{}, false, nil
	}
	if err != nil {
		return Experience{}, false, fmt.Errorf("get experience %s: %w", id, err)
	}
	return exp, true, nil
}

// #endregion append

// #region list
// ListRecent returns the newest experiences for a user, newest first.
// Set scoredOnly to skip entries still awaiting feedback.
func (s *Store) ListRecent(ctx context.Context, userID string, limit int, scoredOnly bool) ([]Experience, error) {
	q := `SELECT id, user_id, context_vector, action, reward, scored,
	             momentum_before, overdue_before, habit_before,
	             momentum_after, overdue_after, habit_after, created_at
	      FROM experiences WHERE user_id = ?`
	if scoredOnly {
		q += ` AND scored = 1`
	}
	q += ` ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list experiences: %w", err)
	}
	defer rows.Close()

	var out []Experience
	for rows.Next() {
		exp, err := scanExperience(rows)
		if err != nil {
			return nil, fmt.Errorf("scan experience: %w", err)
		}
		out = append(out, exp)
	}
	return out, rows.Err()
}

// #endregion list

// #region prune
// Prune deletes all but the most recent keepLast experiences for a user.
// Idempotent; it never removes a record newer than any retained record.
func (s *Store) Prune(ctx context.Context, userID string, keepLast int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM experiences WHERE user_id = ? AND id NOT IN (
			SELECT id FROM experiences WHERE user_id = ?
			ORDER BY created_at DESC LIMIT ?
		 )`,
		userID, userID, keepLast,
	)
	if err != nil {
		return fmt.Errorf("prune experiences: %w", err)
	}
	return nil
}

// #endregion prune

// #region weights
// Weights loads a user's weight vectors. Actions without a stored row hold
// the zero vector.
func (s *Store) Weights(ctx context.Context, userID string) (policy.Weights, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, weights FROM policy_weights WHERE user_id = ?`, userID)
	if err != nil {
		return policy.Weights{}, fmt.Errorf("load weights: %w", err)
	}
	defer rows.Close()

	var w policy.Weights
	for rows.Next() {
		var action string
		var blob []byte
		if err := rows.Scan(&action, &blob); err != nil {
			return policy.Weights{}, fmt.Errorf("scan weights: %w", err)
		}
		w.Set(policy.ActionType(action), decodeVector(blob))
	}
	return w, rows.Err()
}

// SaveWeights upserts every action's weight vector for a user.
func (s *Store) SaveWeights(ctx context.Context, userID string, w policy.Weights) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, a := range policy.Actions() {
		v := w.Get(a)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO policy_weights (user_id, action, weights, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(user_id, action) DO UPDATE SET
				weights = excluded.weights,
				updated_at = excluded.updated_at`,
			userID, string(a), encodeVector(v), now,
		)
		if err != nil {
			return fmt.Errorf("upsert weights %s: %w", a, err)
		}
	}
	return tx.Commit()
}

// #endregion weights

// #region scan

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperience(r rowScanner) (Experience, error) {
	var exp Experience
	var blob []byte
	var action, createdStr string
	var scored int
	err := r.Scan(&exp.ID, &exp.UserID, &blob, &action, &exp.Reward, &scored,
		&exp.Before.Momentum, &exp.Before.OverdueRatio, &exp.Before.HabitRate,
		&exp.After.Momentum, &exp.After.OverdueRatio, &exp.After.HabitRate,
		&createdStr)
	if err != nil {
		return Experience{}, err
	}
	exp.Vector = decodeVector(blob)
	exp.Action = policy.ActionType(action)
	exp.Scored = scored == 1
	exp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return exp, nil
}

// #endregion scan

// #region vector-encoding
func encodeVector(v policy.Vector) []byte {
	buf := make([]byte, policy.VectorDim*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) policy.Vector {
	var v policy.Vector
	for i := range v {
		if i*8+8 <= len(b) {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
		}
	}
	return v
}

// #endregion vector-encoding
