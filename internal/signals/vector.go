package signals

import (
	"math"

	"github.com/sagecoach/engine/internal/policy"
)

// #region vector
// Vector maps a UserContext onto the fixed 18-element vector the policy
// engine scores against. Total and deterministic; every element is clamped
// to [0,1]. The index order below is a contract with stored weight
// vectors; do not reorder.
//
//	 0 habit completion rate
//	 1 habit variance (normalized)
//	 2 task overdue ratio
//	 3 task completion ratio
//	 4 journal sentiment
//	 5 burnout risk
//	 6 momentum
//	 7 financial health
//	 8 hour of day / 23
//	 9 weekday / 6
//	10 weekend flag
//	11 days since activity / 7, capped
//	12 pending tasks / 20, capped
//	13 tasks due today / 10, capped
//	14 habits done / habits total
//	15 streak / 30, capped
//	16 last mood, 1-5 onto [0,1]
//	17 data quality
func Vector(uc UserContext) policy.Vector {
	var v policy.Vector
	v[0] = clamp01(uc.HabitRate)
	v[1] = clamp01(uc.HabitVariance)
	v[2] = clamp01(uc.TaskOverdue)
	v[3] = clamp01(uc.TaskCompletion)
	v[4] = clamp01(uc.Sentiment)
	v[5] = clamp01(uc.BurnoutRisk)
	v[6] = clamp01(uc.Momentum)
	v[7] = clamp01(uc.FinancialHealth)
	v[8] = clamp01(float64(uc.Hour) / 23)
	v[9] = clamp01(float64(uc.Weekday) / 6)
	if uc.IsWeekend {
		v[10] = 1
	}
	v[11] = clamp01(uc.DaysSinceActivity / 7)
	v[12] = clamp01(float64(uc.PendingTasks) / 20)
	v[13] = clamp01(float64(uc.TasksDueToday) / 10)
	v[14] = clamp01(float64(uc.HabitsDone) / math.Max(float64(uc.HabitsTotal), 1))
	v[15] = clamp01(float64(uc.Streak) / 30)
	v[16] = clamp01(float64(uc.LastMood-1) / 4)
	v[17] = clamp01(uc.DataQuality)
	return v
}

// #endregion vector
