package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sagecoach/engine/internal/policy"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id             TEXT PRIMARY KEY,
	identity            TEXT NOT NULL DEFAULT '',
	values_json         TEXT NOT NULL DEFAULT '[]',
	communication_style TEXT NOT NULL DEFAULT '',
	constraints_json    TEXT NOT NULL DEFAULT '[]',
	updated_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS facts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	statement  TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0.5,
	last_seen  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_facts_user ON facts(user_id, confidence);

CREATE TABLE IF NOT EXISTS patterns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	statement  TEXT NOT NULL,
	evidence   TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0.5,
	actionable INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_patterns_user ON patterns(user_id, confidence);

CREATE TABLE IF NOT EXISTS feedback (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	action     TEXT NOT NULL,
	helpful    INTEGER NOT NULL DEFAULT 0,
	ignored    INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback(user_id, created_at);
`

// #endregion schema

// #region store

// Store persists profiles, facts, patterns and feedback in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore runs migrations and returns a store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("memory schema: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion store

// #region profile

// ProfileFor reads a user's profile, creating a default one on first use.
func (s *Store) ProfileFor(ctx context.Context, userID string) (Profile, error) {
	p, found, err := s.readProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if found {
		return p, nil
	}

	p = Profile{UserID: userID, UpdatedAt: time.Now().UTC()}
	if err := s.SaveProfile(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Store) readProfile(ctx context.Context, userID string) (Profile, bool, error) {
	var p Profile
	var valuesJSON, constraintsJSON, updatedStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, identity, values_json, communication_style, constraints_json, updated_at
		 FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Identity, &valuesJSON, &p.CommunicationStyle, &constraintsJSON, &updatedStr)
	if err == sql.ErrNoRows {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("read profile %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(valuesJSON), &p.Values); err != nil {
		return Profile{}, false, fmt.Errorf("unmarshal values: %w", err)
	}
	if err := json.Unmarshal([]byte(constraintsJSON), &p.Constraints); err != nil {
		return Profile{}, false, fmt.Errorf("unmarshal constraints: %w", err)
	}
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return p, true, nil
}

// SaveProfile upserts a profile.
func (s *Store) SaveProfile(ctx context.Context, p Profile) error {
	valuesJSON, err := json.Marshal(emptyIfNil(p.Values))
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	constraintsJSON, err := json.Marshal(emptyIfNil(p.Constraints))
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, identity, values_json, communication_style, constraints_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			identity = excluded.identity,
			values_json = excluded.values_json,
			communication_style = excluded.communication_style,
			constraints_json = excluded.constraints_json,
			updated_at = excluded.updated_at`,
		p.UserID, p.Identity, string(valuesJSON), p.CommunicationStyle,
		string(constraintsJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.UserID, err)
	}
	return nil
}

// #endregion profile

// #region facts

// AddFact appends a fact for a user.
func (s *Store) AddFact(ctx context.Context, userID string, f Fact) error {
	seen := f.LastSeen
	if seen.IsZero() {
		seen = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (user_id, statement, category, confidence, last_seen)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, f.Statement, f.Category, f.Confidence, seen.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("add fact: %w", err)
	}
	return nil
}

// TopFacts returns the highest-confidence facts for a user.
func (s *Store) TopFacts(ctx context.Context, userID string, limit int) ([]Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, statement, category, confidence, last_seen
		 FROM facts WHERE user_id = ?
		 ORDER BY confidence DESC, id ASC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("top facts: %w", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var f Fact
		var seenStr string
		if err := rows.Scan(&f.ID, &f.Statement, &f.Category, &f.Confidence, &seenStr); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.LastSeen, _ = time.Parse(time.RFC3339Nano, seenStr)
		out = append(out, f)
	}
	return out, rows.Err()
}

// #endregion facts

// #region patterns

// AddPattern appends a pattern for a user.
func (s *Store) AddPattern(ctx context.Context, userID string, p Pattern) error {
	actionable := 0
	if p.Actionable {
		actionable = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO patterns (user_id, statement, evidence, confidence, actionable)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, p.Statement, p.Evidence, p.Confidence, actionable,
	)
	if err != nil {
		return fmt.Errorf("add pattern: %w", err)
	}
	return nil
}

// ConfidentPatterns returns patterns at or above minConf, best first.
func (s *Store) ConfidentPatterns(ctx context.Context, userID string, minConf float64, limit int) ([]Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, statement, evidence, confidence, actionable
		 FROM patterns WHERE user_id = ? AND confidence >= ?
		 ORDER BY confidence DESC, id ASC LIMIT ?`, userID, minConf, limit)
	if err != nil {
		return nil, fmt.Errorf("confident patterns: %w", err)
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		var p Pattern
		var actionable int
		if err := rows.Scan(&p.ID, &p.Statement, &p.Evidence, &p.Confidence, &actionable); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		p.Actionable = actionable == 1
		out = append(out, p)
	}
	return out, rows.Err()
}

// #endregion patterns

// #region feedback

// AddFeedback appends one feedback record.
func (s *Store) AddFeedback(ctx context.Context, userID string, f Feedback) error {
	helpful, ignored := 0, 0
	if f.Helpful {
		helpful = 1
	}
	if f.Ignored {
		ignored = 1
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (user_id, action, helpful, ignored, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, string(f.Action), helpful, ignored, created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("add feedback: %w", err)
	}
	return nil
}

// RecentFeedback returns the newest feedback records, newest first.
func (s *Store) RecentFeedback(ctx context.Context, userID string, limit int) ([]Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, helpful, ignored, created_at
		 FROM feedback WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		var action, createdStr string
		var helpful, ignored int
		if err := rows.Scan(&action, &helpful, &ignored, &createdStr); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		f.Action = policy.ActionType(action)
		f.Helpful = helpful == 1
		f.Ignored = ignored == 1
		f.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, f)
	}
	return out, rows.Err()
}

// #endregion feedback

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
