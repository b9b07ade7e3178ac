package policy

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// #region select
// Select scores every action against the context vector and picks the
// argmax. Pure and deterministic: identical (vector, weights) always yield
// the identical decision. Ties resolve to the earlier action in the
// canonical enumeration order, so an action with no learned weights (score
// 0) is never preferred over one with a strictly positive score.
func Select(vec Vector, w Weights) Decision {
	scores := make(map[ActionType]float64, len(Actions()))

	best := Actions()[0]
	bw := w.Get(best)
	bestScore := floats.Dot(vec[:], bw[:])
	scores[best] = bestScore

	secondScore := 0.0
	haveSecond := false

	for _, a := range Actions()[1:] {
		wa := w.Get(a)
		s := floats.Dot(vec[:], wa[:])
		scores[a] = s
		if s > bestScore {
			secondScore = bestScore
			haveSecond = true
			best = a
			bestScore = s
		} else if !haveSecond || s > secondScore {
			secondScore = s
			haveSecond = true
		}
	}

	margin := bestScore - secondScore
	if margin < 0 {
		margin = 0
	}
	// 0 at a tie, asymptotically 1 as the margin widens.
	confidence := margin / (1 + margin)

	return Decision{
		Action:     best,
		Confidence: confidence,
		Reasoning: fmt.Sprintf("%s scored %.4f, margin %.4f over runner-up",
			best, bestScore, margin),
		Scores: scores,
	}
}

// #endregion select
