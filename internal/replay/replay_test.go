package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagecoach/engine/internal/experience"
	"github.com/sagecoach/engine/internal/policy"
)

func history() []experience.Experience {
	// Celebrations earned good rewards; observes went nowhere.
	return []experience.Experience{
		{Vector: policy.Vector{0: 1}, Action: policy.ActionCelebrate, Reward: 3, Scored: true},
		{Vector: policy.Vector{0: 1}, Action: policy.ActionCelebrate, Reward: 2, Scored: true},
		{Vector: policy.Vector{0: 1}, Action: policy.ActionObserve, Reward: -1, Scored: true},
	}
}

func TestRunRanksCandidates(t *testing.T) {
	var tuned policy.Weights
	tuned.Set(policy.ActionCelebrate, policy.Vector{0: 1})

	summary := Run(history(), []Candidate{
		{Name: "baseline", Weights: policy.Weights{}},
		{Name: "tuned", Weights: tuned},
	})

	require.Len(t, summary.Reports, 2)
	assert.Equal(t, "tuned", summary.Best)
	assert.Equal(t, 3, summary.Total)

	top := summary.Reports[0]
	assert.Equal(t, "tuned", top.Name)
	assert.InDelta(t, 2.5, top.PolicyValue, 1e-9, "mean reward over the matched celebrations")
	assert.Equal(t, 2, top.Matched)
	assert.InDelta(t, 2.0/3.0, top.MatchRate, 1e-9)
}

func TestRunTieBreaksByRegret(t *testing.T) {
	// Both candidates match nothing (policy value 0), but tuned has lower
	// regret on the logged actions.
	hist := []experience.Experience{
		{Vector: policy.Vector{0: 1}, Action: policy.ActionObserve, Reward: 1, Scored: true},
	}
	var lowRegret, highRegret policy.Weights
	lowRegret.Set(policy.ActionNudge, policy.Vector{0: 0.1})
	highRegret.Set(policy.ActionNudge, policy.Vector{0: 5})

	summary := Run(hist, []Candidate{
		{Name: "high", Weights: highRegret},
		{Name: "low", Weights: lowRegret},
	})
	assert.Equal(t, "low", summary.Best)
}

func TestRunEmpty(t *testing.T) {
	summary := Run(nil, nil)
	assert.Empty(t, summary.Reports)
	assert.Empty(t, summary.Best)
	assert.Zero(t, summary.Total)
}
