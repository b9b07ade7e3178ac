package profiler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrVersionConflict is returned when a snapshot write loses an optimistic
// concurrency race; callers should re-read and regenerate.
var ErrVersionConflict = errors.New("behavioral dna version conflict")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS behavioral_dna (
	user_id      TEXT PRIMARY KEY,
	version      INTEGER NOT NULL,
	payload      TEXT NOT NULL,
	generated_at TEXT NOT NULL
);
`

// #endregion schema

// #region store

// SnapshotStore persists one versioned DNA snapshot per user. Writes check
// the reader-supplied version so concurrent regenerations cannot silently
// overwrite each other.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore creates the behavioral_dna table if needed.
func NewSnapshotStore(db *sql.DB) (*SnapshotStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("dna schema: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Load reads the current snapshot for a user.
func (s *SnapshotStore) Load(ctx context.Context, userID string) (DNA, bool, error) {
	var payload, generatedStr string
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT version, payload, generated_at FROM behavioral_dna WHERE user_id = ?`,
		userID,
	).Scan(&version, &payload, &generatedStr)
	if err == sql.ErrNoRows {
		return DNA{}, false, nil
	}
	if err != nil {
		return DNA{}, false, fmt.Errorf("load dna %s: %w", userID, err)
	}

	var dna DNA
	if err := json.Unmarshal([]byte(payload), &dna); err != nil {
		return DNA{}, false, fmt.Errorf("unmarshal dna: %w", err)
	}
	dna.UserID = userID
	dna.Version = version
	dna.GeneratedAt, _ = time.Parse(time.RFC3339Nano, generatedStr)
	return dna, true, nil
}

// Save replaces the snapshot wholesale, requiring expectedVersion to match
// the stored version (0 for a first write). On success the stored version
// becomes expectedVersion+1; on mismatch it returns ErrVersionConflict.
func (s *SnapshotStore) Save(ctx context.Context, dna DNA, expectedVersion int64) (int64, error) {
	dna.Version = 0 // version lives in its own column
	payload, err := json.Marshal(dna)
	if err != nil {
		return 0, fmt.Errorf("marshal dna: %w", err)
	}
	generated := dna.GeneratedAt.UTC().Format(time.RFC3339Nano)
	next := expectedVersion + 1

	if expectedVersion == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO behavioral_dna (user_id, version, payload, generated_at)
			 VALUES (?, ?, ?, ?)`,
			dna.UserID, next, string(payload), generated,
		)
		if err != nil {
			// A concurrent first write already claimed the row.
			return 0, fmt.Errorf("insert dna %s: %w", dna.UserID, errors.Join(ErrVersionConflict, err))
		}
		return next, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE behavioral_dna SET version = ?, payload = ?, generated_at = ?
		 WHERE user_id = ? AND version = ?`,
		next, string(payload), generated, dna.UserID, expectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("update dna %s: %w", dna.UserID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update dna %s: %w", dna.UserID, err)
	}
	if n == 0 {
		return 0, ErrVersionConflict
	}
	return next, nil
}

// #endregion store
