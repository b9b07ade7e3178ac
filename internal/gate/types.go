package gate

import "github.com/sagecoach/engine/internal/policy"

// #region check-type
// CheckType names each independent gate check. Check names appear verbatim
// in aggregated rejection reasons.
type CheckType string

const (
	CheckQuietHours        CheckType = "quiet_hours"
	CheckDailyCap          CheckType = "daily_cap"
	CheckDataQuality       CheckType = "data_quality"
	CheckForbiddenCategory CheckType = "forbidden_category"
	CheckConsecutiveNudges CheckType = "consecutive_nudges"
	CheckUserDisabled      CheckType = "user_disabled"
)

// #endregion check-type

// #region violation
// Violation is one failed check with its reason.
type Violation struct {
	Check  CheckType
	Reason string
}

// #endregion violation

// #region config
// Config holds the safety thresholds.
type Config struct {
	MaxActionsPerDay     int
	QuietHoursStart      int // local hour, inclusive
	QuietHoursEnd        int // local hour, exclusive; window wraps midnight
	MinDataQuality       float64
	ForbiddenCategories  []policy.Category
	MaxConsecutiveNudges int
}

// DefaultConfig returns the hardcoded safety defaults.
func DefaultConfig() Config {
	return Config{
		MaxActionsPerDay:     5,
		QuietHoursStart:      22,
		QuietHoursEnd:        7,
		MinDataQuality:       0.2,
		MaxConsecutiveNudges: 3,
	}
}

// #endregion config

// #region result
// Result is the output of a gate evaluation. All failing checks are
// reported at once; the gate never short-circuits.
type Result struct {
	Allowed    bool
	Violations []Violation
}

// Reasons returns the violation reasons in check order.
func (r Result) Reasons() []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.Reason
	}
	return out
}

// #endregion result

// #region user-state
// UserState carries the per-user mutable counters threaded through each
// evaluation. It is persisted, never held as fields on the gate itself, so
// concurrent instances share one source of truth.
type UserState struct {
	Day               string // YYYY-MM-DD the counters belong to
	ActionsToday      int
	ConsecutiveNudges int
}

// #endregion user-state
