package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// #region outcome
// Outcome is the final disposition of one decision run. Every run is
// audited, whether it delivered an action, was blocked by the safety gate,
// was rejected on security grounds, or failed.
type Outcome string

const (
	OutcomeDelivered        Outcome = "delivered"
	OutcomeBlocked          Outcome = "blocked"
	OutcomeFailed           Outcome = "failed"
	OutcomeSecurityRejected Outcome = "security_rejected"
)

// #endregion outcome

// #region entry
// Entry is a single row in the decision_log table.
type Entry struct {
	CorrelationID string
	UserID        string
	Skill         string
	Action        string
	Outcome       Outcome
	Reasons       []string
	RiskScore     int
	DataQuality   float64
	CreatedAt     time.Time
}

// #endregion entry

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS decision_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	correlation_id TEXT NOT NULL,
	user_id        TEXT NOT NULL,
	skill          TEXT,
	action         TEXT,
	outcome        TEXT NOT NULL,
	reasons        TEXT,
	risk_score     INTEGER NOT NULL DEFAULT 0,
	data_quality   REAL NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_log_user ON decision_log(user_id, created_at);
`

// #endregion schema

// #region log

// Log writes decision audit rows to SQLite.
type Log struct {
	db *sql.DB
}

// NewLog creates the decision_log table if needed and returns a log.
func NewLog(db *sql.DB) (*Log, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("audit schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Record writes one audit entry.
func (l *Log) Record(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO decision_log
		 (correlation_id, user_id, skill, action, outcome, reasons, risk_score, data_quality, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CorrelationID,
		entry.UserID,
		nullIfEmpty(entry.Skill),
		nullIfEmpty(entry.Action),
		string(entry.Outcome),
		nullIfEmpty(strings.Join(entry.Reasons, "; ")),
		entry.RiskScore,
		entry.DataQuality,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// Recent returns the newest entries for a user, newest first.
func (l *Log) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT correlation_id, user_id, skill, action, outcome, reasons, risk_score, data_quality, created_at
		 FROM decision_log WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var skill, action, reasons sql.NullString
		var outcome, createdStr string
		if err := rows.Scan(&e.CorrelationID, &e.UserID, &skill, &action,
			&outcome, &reasons, &e.RiskScore, &e.DataQuality, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Skill = skill.String
		e.Action = action.String
		e.Outcome = Outcome(outcome)
		if reasons.Valid && reasons.String != "" {
			e.Reasons = strings.Split(reasons.String, "; ")
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion log

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
