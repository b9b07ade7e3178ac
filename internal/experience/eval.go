package experience

import (
	"gonum.org/v1/gonum/floats"

	"github.com/sagecoach/engine/internal/policy"
)

// #region evaluate-policy
// EvaluatePolicy replays each experience and averages the rewards of those
// where the candidate weights would have selected the originally-logged
// action (an on-policy subset estimate). Zero matching experiences yields
// 0, which callers must treat as "no evidence", not "bad policy".
func EvaluatePolicy(experiences []Experience, candidate policy.Weights) float64 {
	var sum float64
	matched := 0
	for _, exp := range experiences {
		d := policy.Select(exp.Vector, candidate)
		if d.Action == exp.Action {
			sum += exp.Reward
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return sum / float64(matched)
}

// MatchRate returns the fraction of experiences where the candidate would
// repeat the logged action.
func MatchRate(experiences []Experience, candidate policy.Weights) float64 {
	if len(experiences) == 0 {
		return 0
	}
	matched := 0
	for _, exp := range experiences {
		if policy.Select(exp.Vector, candidate).Action == exp.Action {
			matched++
		}
	}
	return float64(matched) / float64(len(experiences))
}

// #endregion evaluate-policy

// #region regret
// CalculateRegret averages, over the full history, the gap between the
// best-achievable score under weights and the score weights assign to the
// logged action. Note the denominator is all experiences, unlike
// EvaluatePolicy's matched subset.
func CalculateRegret(experiences []Experience, w policy.Weights) float64 {
	if len(experiences) == 0 {
		return 0
	}
	var total float64
	for _, exp := range experiences {
		best := 0.0
		first := true
		for _, a := range policy.Actions() {
			wa := w.Get(a)
			s := floats.Dot(exp.Vector[:], wa[:])
			if first || s > best {
				best = s
				first = false
			}
		}
		chosenW := w.Get(exp.Action)
		chosen := floats.Dot(exp.Vector[:], chosenW[:])
		total += best - chosen
	}
	return total / float64(len(experiences))
}

// #endregion regret
