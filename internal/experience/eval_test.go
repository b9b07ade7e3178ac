package experience

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sagecoach/engine/internal/policy"
)

// matchedHistory builds a scored history where the returned weights always
// reproduce the logged action.
func matchedHistory(rewards []float64) ([]Experience, policy.Weights) {
	var w policy.Weights
	w.Set(policy.ActionCelebrate, policy.Vector{0: 1})

	var out []Experience
	for _, r := range rewards {
		out = append(out, Experience{
			Vector: policy.Vector{0: 1},
			Action: policy.ActionCelebrate,
			Reward: r,
			Scored: true,
		})
	}
	return out, w
}

func TestEvaluatePolicyAveragesMatchedRewards(t *testing.T) {
	history, w := matchedHistory([]float64{3, 3, 3})
	assert.InDelta(t, 3.0, EvaluatePolicy(history, w), 1e-9)
	assert.InDelta(t, 1.0, MatchRate(history, w), 1e-9)
}

func TestEvaluatePolicySkipsUnmatched(t *testing.T) {
	history, w := matchedHistory([]float64{4, 4})
	// An experience the candidate would not repeat is excluded from the mean.
	history = append(history, Experience{
		Vector: policy.Vector{0: 1},
		Action: policy.ActionObserve,
		Reward: -5,
		Scored: true,
	})
	assert.InDelta(t, 4.0, EvaluatePolicy(history, w), 1e-9)
	assert.InDelta(t, 2.0/3.0, MatchRate(history, w), 1e-9)
}

func TestEvaluatePolicyNoEvidence(t *testing.T) {
	history, _ := matchedHistory([]float64{1})
	var stranger policy.Weights
	stranger.Set(policy.ActionProtect, policy.Vector{0: 9})

	assert.Equal(t, 0.0, EvaluatePolicy(history, stranger),
		"zero matches means no evidence, reported as 0")
	assert.Equal(t, 0.0, EvaluatePolicy(nil, stranger))
}

func TestCalculateRegretZeroWhenOptimal(t *testing.T) {
	history, w := matchedHistory([]float64{2, 2})
	assert.InDelta(t, 0.0, CalculateRegret(history, w), 1e-9)
}

func TestCalculateRegretMeasuresGap(t *testing.T) {
	var w policy.Weights
	w.Set(policy.ActionCelebrate, policy.Vector{0: 1})
	w.Set(policy.ActionNudge, policy.Vector{0: 0.25})

	// Logged action nudge scores 0.25, best achievable is celebrate at 1.0.
	history := []Experience{{
		Vector: policy.Vector{0: 1},
		Action: policy.ActionNudge,
		Scored: true,
	}}
	assert.InDelta(t, 0.75, CalculateRegret(history, w), 1e-9)
}

func TestCalculateRegretFullHistoryDenominator(t *testing.T) {
	var w policy.Weights
	w.Set(policy.ActionCelebrate, policy.Vector{0: 1})

	// One optimal and one maximally-suboptimal entry average out.
	history := []Experience{
		{Vector: policy.Vector{0: 1}, Action: policy.ActionCelebrate, Scored: true},
		{Vector: policy.Vector{0: 1}, Action: policy.ActionObserve, Scored: true},
	}
	assert.InDelta(t, 0.5, CalculateRegret(history, w), 1e-9)
	assert.Equal(t, 0.0, CalculateRegret(nil, w))
}
