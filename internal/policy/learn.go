package policy

import (
	"math"
)

// #region learn-config
// LearnConfig holds learning and decay parameters for weight updates.
type LearnConfig struct {
	LearningRate float64 // step size for the reward-error delta
	DecayRate    float64 // per-update multiplicative decay on untouched actions
	MaxDeltaNorm float64 // L2 clamp on the applied delta
	RewardScale  float64 // divisor mapping rewards into score space
}

// DefaultLearnConfig returns sensible defaults.
func DefaultLearnConfig() LearnConfig {
	return LearnConfig{
		LearningRate: 0.05,
		DecayRate:    0.001,
		MaxDeltaNorm: 0.5,
		RewardScale:  5.0,
	}
}

// #endregion learn-config

// #region learn
// Learn applies one incremental linear-value update for a logged
// (vector, action, reward) triple and returns the new weights. Pure
// function; callers persist the result.
//
// The logged action's vector moves toward predicting the scaled reward:
//
//	w[a] += lr · (reward/scale − dot(w[a], x)) · x
//
// with the applied delta L2-clamped to MaxDeltaNorm. Every other action's
// vector decays multiplicatively, so actions that stop earning selections
// drift back toward dormancy rather than freezing at stale values.
func Learn(w Weights, vec Vector, action ActionType, reward float64, config LearnConfig) Weights {
	if !action.Valid() {
		return w
	}

	target := reward
	if config.RewardScale > 0 {
		target = reward / config.RewardScale
	}

	wa := w.Get(action)
	predicted := 0.0
	for i := range vec {
		predicted += wa[i] * vec[i]
	}
	err := target - predicted

	var delta Vector
	var sumSq float64
	for i := range vec {
		delta[i] = config.LearningRate * err * vec[i]
		sumSq += delta[i] * delta[i]
	}

	norm := math.Sqrt(sumSq)
	if config.MaxDeltaNorm > 0 && norm > config.MaxDeltaNorm {
		scale := config.MaxDeltaNorm / norm
		for i := range delta {
			delta[i] *= scale
		}
	}

	for i := range wa {
		wa[i] += delta[i]
	}
	w.Set(action, wa)

	if config.DecayRate > 0 {
		for _, other := range Actions() {
			if other == action {
				continue
			}
			v := w.Get(other)
			for i := range v {
				v[i] *= 1 - config.DecayRate
			}
			w.Set(other, v)
		}
	}

	return w
}

// #endregion learn
