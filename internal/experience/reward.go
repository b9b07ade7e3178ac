package experience

// #region reward-constants
const (
	rewardCompleted = 3.0
	rewardAccepted  = 2.0
	rewardNeutral   = 0.0
	rewardIgnored   = -1.0
	rewardRejected  = -1.5

	deltaScale = 2.0 // weight of each metric delta

	rewardMin = -5.0
	rewardMax = 5.0

	qualityFloor = 0.25 // reward factor at data_quality 0
)

// #endregion reward-constants

// #region compute-reward
// ComputeReward combines categorical feedback with scaled metric deltas,
// attenuated by data quality, and clamps the result to [-5, 5].
//
// Momentum gains, overdue-ratio drops and habit-rate gains all contribute
// positively. The data-quality factor spans [0.25, 1.0], so a reward earned
// on thin evidence counts for less but never flips sign.
func ComputeReward(o Outcome) float64 {
	base := rewardNeutral
	switch o.Feedback {
	case FeedbackCompleted:
		base = rewardCompleted
	case FeedbackAccepted:
		base = rewardAccepted
	case FeedbackIgnored:
		base = rewardIgnored
	case FeedbackRejected:
		base = rewardRejected
	}

	deltas := deltaScale * ((o.After.Momentum - o.Before.Momentum) +
		(o.Before.OverdueRatio - o.After.OverdueRatio) +
		(o.After.HabitRate - o.Before.HabitRate))

	quality := o.DataQuality
	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}
	factor := qualityFloor + (1-qualityFloor)*quality

	reward := (base + deltas) * factor
	if reward < rewardMin {
		return rewardMin
	}
	if reward > rewardMax {
		return rewardMax
	}
	return reward
}

// #endregion compute-reward
