package experience

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeRewardFeedbackOrdering(t *testing.T) {
	kinds := []FeedbackKind{
		FeedbackCompleted, FeedbackAccepted, FeedbackNeutral,
		FeedbackIgnored, FeedbackRejected,
	}
	var prev float64
	for i, k := range kinds {
		r := ComputeReward(Outcome{Feedback: k, DataQuality: 1})
		if i > 0 {
			assert.Less(t, r, prev, "%s must score below %s", k, kinds[i-1])
		}
		prev = r
	}
}

func TestComputeRewardMetricDeltas(t *testing.T) {
	improved := ComputeReward(Outcome{
		Feedback:    FeedbackNeutral,
		Before:      Metrics{Momentum: 0.3, OverdueRatio: 0.5, HabitRate: 0.4},
		After:       Metrics{Momentum: 0.6, OverdueRatio: 0.2, HabitRate: 0.6},
		DataQuality: 1,
	})
	declined := ComputeReward(Outcome{
		Feedback:    FeedbackNeutral,
		Before:      Metrics{Momentum: 0.6, OverdueRatio: 0.2, HabitRate: 0.6},
		After:       Metrics{Momentum: 0.3, OverdueRatio: 0.5, HabitRate: 0.4},
		DataQuality: 1,
	})
	assert.Greater(t, improved, 0.0)
	assert.Less(t, declined, 0.0)
	assert.InDelta(t, -improved, declined, 1e-9)
}

func TestComputeRewardQualityAttenuates(t *testing.T) {
	outcome := Outcome{Feedback: FeedbackCompleted, DataQuality: 1}
	full := ComputeReward(outcome)

	outcome.DataQuality = 0.5
	half := ComputeReward(outcome)

	outcome.DataQuality = 0
	floor := ComputeReward(outcome)

	assert.Greater(t, full, half)
	assert.Greater(t, half, floor)
	assert.InDelta(t, 3.0*0.25, floor, 1e-9, "quality floor keeps a quarter of the reward")
	assert.Greater(t, floor, 0.0, "low quality attenuates but never flips sign")
}

func TestComputeRewardClamped(t *testing.T) {
	high := ComputeReward(Outcome{
		Feedback:    FeedbackCompleted,
		Before:      Metrics{OverdueRatio: 1},
		After:       Metrics{Momentum: 1, HabitRate: 1},
		DataQuality: 1,
	})
	assert.LessOrEqual(t, high, 5.0)

	low := ComputeReward(Outcome{
		Feedback:    FeedbackRejected,
		Before:      Metrics{Momentum: 1, HabitRate: 1},
		After:       Metrics{OverdueRatio: 1},
		DataQuality: 1,
	})
	assert.GreaterOrEqual(t, low, -5.0)
}
