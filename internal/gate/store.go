package gate

import (
	"context"
	"database/sql"
	"fmt"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS gate_state (
	user_id            TEXT PRIMARY KEY,
	day                TEXT NOT NULL,
	actions_today      INTEGER NOT NULL DEFAULT 0,
	consecutive_nudges INTEGER NOT NULL DEFAULT 0
);
`

// #endregion schema

// #region sqlite-store

// SQLStore persists gate counters in SQLite, one row per user.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates the gate_state table if needed and returns a store.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("gate schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// GateState reads the counters for a user.
func (s *SQLStore) GateState(ctx context.Context, userID string) (UserState, bool, error) {
	var st UserState
	err := s.db.QueryRowContext(ctx,
		`SELECT day, actions_today, consecutive_nudges FROM gate_state WHERE user_id = ?`,
		userID,
	).Scan(&st.Day, &st.ActionsToday, &st.ConsecutiveNudges)
	if err == sql.ErrNoRows {
		return UserState{}, false, nil
	}
	if err != nil {
		return UserState{}, false, fmt.Errorf("gate state %s: %w", userID, err)
	}
	return st, true, nil
}

// SaveGateState upserts the counters for a user.
func (s *SQLStore) SaveGateState(ctx context.Context, userID string, st UserState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gate_state (user_id, day, actions_today, consecutive_nudges)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			day = excluded.day,
			actions_today = excluded.actions_today,
			consecutive_nudges = excluded.consecutive_nudges`,
		userID, st.Day, st.ActionsToday, st.ConsecutiveNudges,
	)
	if err != nil {
		return fmt.Errorf("save gate state %s: %w", userID, err)
	}
	return nil
}

// ResetDailyCounts zeroes actions_today for every user.
func (s *SQLStore) ResetDailyCounts(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE gate_state SET actions_today = 0`); err != nil {
		return fmt.Errorf("reset daily counts: %w", err)
	}
	return nil
}

// #endregion sqlite-store
