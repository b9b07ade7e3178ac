package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectDeterministic(t *testing.T) {
	var vec Vector
	vec[0] = 0.8
	vec[4] = 0.3

	var w Weights
	wa := Vector{0: 1.0}
	w.Set(ActionChallenge, wa)

	d1 := Select(vec, w)
	d2 := Select(vec, w)
	require.Equal(t, d1, d2)
	assert.Equal(t, ActionChallenge, d1.Action)
}

func TestSelectTieBreaksToEarlierAction(t *testing.T) {
	// All weights zero: every action scores 0, so the first enumerated
	// action wins.
	var vec Vector
	vec[0] = 1.0

	d := Select(vec, Weights{})
	assert.Equal(t, Actions()[0], d.Action)
	assert.Equal(t, 0.0, d.Confidence, "tied scores must yield zero confidence")
}

func TestSelectPrefersPositiveOverDormant(t *testing.T) {
	var vec Vector
	vec[2] = 1.0

	// Only celebrate (later in the enumeration) has learned weight.
	var w Weights
	w.Set(ActionCelebrate, Vector{2: 0.5})

	d := Select(vec, w)
	assert.Equal(t, ActionCelebrate, d.Action,
		"a strictly positive score must beat dormant zero-weight actions")
	assert.Greater(t, d.Confidence, 0.0)
}

func TestSelectConfidenceGrowsWithMargin(t *testing.T) {
	var vec Vector
	vec[0] = 1.0

	var narrow, wide Weights
	narrow.Set(ActionNudge, Vector{0: 0.2})
	wide.Set(ActionNudge, Vector{0: 2.0})

	dn := Select(vec, narrow)
	dw := Select(vec, wide)
	require.Equal(t, ActionNudge, dn.Action)
	require.Equal(t, ActionNudge, dw.Action)
	assert.Greater(t, dw.Confidence, dn.Confidence)
	assert.Less(t, dw.Confidence, 1.0)
}

func TestSelectScoresAllActions(t *testing.T) {
	d := Select(Vector{}, Weights{})
	assert.Len(t, d.Scores, len(Actions()))
}

func TestLearnMovesTowardReward(t *testing.T) {
	var vec Vector
	vec[0] = 1.0

	w := Learn(Weights{}, vec, ActionNudge, 5.0, DefaultLearnConfig())
	got := w.Get(ActionNudge)
	assert.Greater(t, got[0], 0.0, "positive reward must raise the active feature")

	w2 := Learn(Weights{}, vec, ActionNudge, -5.0, DefaultLearnConfig())
	got2 := w2.Get(ActionNudge)
	assert.Less(t, got2[0], 0.0, "negative reward must lower the active feature")
}

func TestLearnClampsDeltaNorm(t *testing.T) {
	var vec Vector
	for i := range vec {
		vec[i] = 1.0
	}
	config := DefaultLearnConfig()
	config.LearningRate = 10 // force an oversized raw delta
	config.DecayRate = 0

	w := Learn(Weights{}, vec, ActionNudge, 5.0, config)
	got := w.Get(ActionNudge)

	var sumSq float64
	for _, v := range got {
		sumSq += v * v
	}
	assert.InDelta(t, config.MaxDeltaNorm*config.MaxDeltaNorm, sumSq, 1e-9)
}

func TestLearnDecaysOtherActions(t *testing.T) {
	var w Weights
	w.Set(ActionReframe, Vector{0: 1.0})

	var vec Vector
	vec[0] = 1.0
	updated := Learn(w, vec, ActionNudge, 1.0, DefaultLearnConfig())

	decayed := updated.Get(ActionReframe)
	assert.Less(t, decayed[0], 1.0)
	assert.Greater(t, decayed[0], 0.99)
}

func TestLearnIgnoresInvalidAction(t *testing.T) {
	var w Weights
	w.Set(ActionNudge, Vector{0: 0.7})

	updated := Learn(w, Vector{0: 1.0}, ActionType("bogus"), 3.0, DefaultLearnConfig())
	assert.Equal(t, w, updated)
}

func TestActionsStableOrder(t *testing.T) {
	want := []ActionType{
		ActionNudge, ActionReframe, ActionChallenge,
		ActionCelebrate, ActionProtect, ActionObserve,
	}
	assert.Equal(t, want, Actions())
}

func TestHasCategory(t *testing.T) {
	assert.True(t, ActionChallenge.HasCategory(CategoryPush))
	assert.True(t, ActionProtect.HasCategory(CategoryRest))
	assert.False(t, ActionObserve.HasCategory(CategoryPush))
}
