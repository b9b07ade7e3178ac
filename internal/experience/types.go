package experience

import (
	"time"

	"github.com/sagecoach/engine/internal/policy"
)

// #region metrics
// Metrics is the small set of outcome-relevant measurements captured before
// a decision and again when its feedback arrives.
type Metrics struct {
	Momentum     float64
	OverdueRatio float64
	HabitRate    float64
}

// #endregion metrics

// #region feedback
// FeedbackKind is the categorical user response to a delivered action.
type FeedbackKind string

const (
	FeedbackCompleted FeedbackKind = "completed"
	FeedbackAccepted  FeedbackKind = "accepted"
	FeedbackNeutral   FeedbackKind = "neutral"
	FeedbackIgnored   FeedbackKind = "ignored"
	FeedbackRejected  FeedbackKind = "rejected"
)

// #endregion feedback

// #region outcome
// Outcome bundles everything needed to score a completed decision.
type Outcome struct {
	Feedback    FeedbackKind
	Before      Metrics
	After       Metrics
	DataQuality float64
}

// #endregion outcome

// #region experience
// Experience is one logged (context, action, reward, before/after) tuple.
// Appended at decision time with Scored=false; completed when feedback
// arrives.
type Experience struct {
	ID        string
	UserID    string
	Vector    policy.Vector
	Action    policy.ActionType
	Reward    float64
	Scored    bool
	Before    Metrics
	After     Metrics
	CreatedAt time.Time
}

// #endregion experience

// DefaultRetention is the number of newest experiences kept per user.
const DefaultRetention = 500
