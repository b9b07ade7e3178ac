package memory

import (
	"time"

	"github.com/sagecoach/engine/internal/policy"
)

// #region profile
// Profile is the user's coaching profile. Constraints holds actions the
// user has disabled (values from the closed action enumeration).
type Profile struct {
	UserID             string
	Identity           string
	Values             []string
	CommunicationStyle string
	Constraints        []string
	UpdatedAt          time.Time
}

// DisabledActions parses the profile constraints into action types,
// dropping anything outside the closed enumeration.
func (p Profile) DisabledActions() []policy.ActionType {
	var out []policy.ActionType
	for _, c := range p.Constraints {
		a := policy.ActionType(c)
		if a.Valid() {
			out = append(out, a)
		}
	}
	return out
}

// #endregion profile

// #region fact
// Fact is one remembered statement about the user.
type Fact struct {
	ID         int64
	Statement  string
	Category   string
	Confidence float64
	LastSeen   time.Time
}

// #endregion fact

// #region pattern
// Pattern is one detected behavioral pattern.
type Pattern struct {
	ID         int64
	Statement  string
	Evidence   string
	Confidence float64
	Actionable bool
}

// #endregion pattern

// #region feedback
// Feedback is one user reaction to a delivered coaching action.
type Feedback struct {
	Action    policy.ActionType
	Helpful   bool
	Ignored   bool
	CreatedAt time.Time
}

// #endregion feedback

// #region snapshot
// Snapshot is the cached composite the decision path consumes: profile,
// top facts, confident patterns, and recent feedback.
type Snapshot struct {
	Profile        Profile
	Facts          []Fact
	Patterns       []Pattern
	RecentFeedback []Feedback
	LoadedAt       time.Time
}

// ActionStat summarizes feedback for one action type.
type ActionStat struct {
	Action      policy.ActionType
	Total       int
	HelpfulRate float64
}

// #endregion snapshot

// Load limits for the composite snapshot.
const (
	factLimit         = 20
	patternLimit      = 10
	patternMinConf    = 0.6
	feedbackLimit     = 50
	minActionSamples  = 3
	minEffectiveRatio = 0.6
)
