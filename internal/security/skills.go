package security

import (
	"errors"
	"fmt"
)

// ErrSkillRejected is returned for any skill identifier outside the closed
// whitelist. Callers log it as a security event.
var ErrSkillRejected = errors.New("skill not in whitelist")

// #region skill

// SkillID identifies one whitelisted coaching skill the inference step may
// be parameterized with.
type SkillID string

const (
	SkillCheckin          SkillID = "coach_checkin"
	SkillHabitReview      SkillID = "habit_review"
	SkillTaskTriage       SkillID = "task_triage"
	SkillWeeklyReflection SkillID = "weekly_reflection"
	SkillStreakRescue     SkillID = "streak_rescue"
)

var skillWhitelist = map[SkillID]struct{}{
	SkillCheckin:          {},
	SkillHabitReview:      {},
	SkillTaskTriage:       {},
	SkillWeeklyReflection: {},
	SkillStreakRescue:     {},
}

// ParseSkill validates a raw skill parameter against the closed whitelist.
func ParseSkill(raw string) (SkillID, error) {
	id := SkillID(raw)
	if _, ok := skillWhitelist[id]; !ok {
		return "", fmt.Errorf("skill %q: %w", raw, ErrSkillRejected)
	}
	return id, nil
}

// Skills returns the whitelist in a stable order.
func Skills() []SkillID {
	return []SkillID{
		SkillCheckin,
		SkillHabitReview,
		SkillTaskTriage,
		SkillWeeklyReflection,
		SkillStreakRescue,
	}
}

// #endregion skill
