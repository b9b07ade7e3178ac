package gate

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sagecoach/engine/internal/policy"
	"github.com/sagecoach/engine/internal/signals"
)

// #region store-interface

// StateStore persists per-user gate counters.
type StateStore interface {
	GateState(ctx context.Context, userID string) (UserState, bool, error)
	SaveGateState(ctx context.Context, userID string, st UserState) error
	ResetDailyCounts(ctx context.Context) error
}

// #endregion store-interface

// #region gate

// Gate evaluates whether a proposed coaching action may be delivered.
// It is policy-independent: it can veto any action but never chooses one.
type Gate struct {
	config Config
	store  StateStore
	cache  *lru.Cache[string, UserState]
}

// New creates a gate backed by the given state store.
func New(config Config, store StateStore) (*Gate, error) {
	cache, err := lru.New[string, UserState](4096)
	if err != nil {
		return nil, fmt.Errorf("gate state cache: %w", err)
	}
	return &Gate{config: config, store: store, cache: cache}, nil
}

// #endregion gate

// #region state

// State loads the caller's counters, rolling them over when the stored day
// is stale. The returned state is what Check and RecordAction operate on.
func (g *Gate) State(ctx context.Context, userID string, now time.Time) (UserState, error) {
	day := now.Format("2006-01-02")

	st, ok := g.cache.Get(userID)
	if !ok {
		var found bool
		var err error
		st, found, err = g.store.GateState(ctx, userID)
		if err != nil {
			return UserState{}, fmt.Errorf("load gate state: %w", err)
		}
		if !found {
			st = UserState{Day: day}
		}
	}

	if st.Day != day {
		st = UserState{Day: day, ConsecutiveNudges: st.ConsecutiveNudges}
	}
	return st, nil
}

// RecordAction increments the counters for a delivered action and persists
// them. Any non-nudge action resets the consecutive-nudge counter.
func (g *Gate) RecordAction(ctx context.Context, userID string, action policy.ActionType, now time.Time) error {
	st, err := g.State(ctx, userID, now)
	if err != nil {
		return err
	}
	st.ActionsToday++
	if action == policy.ActionNudge {
		st.ConsecutiveNudges++
	} else {
		st.ConsecutiveNudges = 0
	}
	if err := g.store.SaveGateState(ctx, userID, st); err != nil {
		return fmt.Errorf("save gate state: %w", err)
	}
	g.cache.Add(userID, st)
	return nil
}

// ResetDailyCaps zeroes every user's daily counter. Invoked by the external
// daily scheduler. The store is reset before the cache is purged so a
// concurrent read cannot repopulate the cache with a pre-reset counter.
func (g *Gate) ResetDailyCaps(ctx context.Context) error {
	if err := g.store.ResetDailyCounts(ctx); err != nil {
		return err
	}
	g.cache.Purge()
	return nil
}

// #endregion state

// #region check

// Check runs the six independent checks, ANDed, aggregating every failing
// reason so a caller sees all violated constraints at once. disabled is the
// user's own disabled-action list from the memory profile constraints.
func (g *Gate) Check(uc signals.UserContext, st UserState, proposed policy.ActionType, disabled []policy.ActionType) Result {
	var violations []Violation

	// 1. Quiet hours; the window wraps past midnight.
	if inQuietHours(uc.Hour, g.config.QuietHoursStart, g.config.QuietHoursEnd) {
		violations = append(violations, Violation{
			Check: CheckQuietHours,
			Reason: fmt.Sprintf("%s: hour %d within %d-%d",
				CheckQuietHours, uc.Hour, g.config.QuietHoursStart, g.config.QuietHoursEnd),
		})
	}

	// 2. Daily cap.
	if st.ActionsToday >= g.config.MaxActionsPerDay {
		violations = append(violations, Violation{
			Check: CheckDailyCap,
			Reason: fmt.Sprintf("%s: %d actions today reached cap %d",
				CheckDailyCap, st.ActionsToday, g.config.MaxActionsPerDay),
		})
	}

	// 3. Minimum data quality.
	if uc.DataQuality < g.config.MinDataQuality {
		violations = append(violations, Violation{
			Check: CheckDataQuality,
			Reason: fmt.Sprintf("%s: %.2f below minimum %.2f",
				CheckDataQuality, uc.DataQuality, g.config.MinDataQuality),
		})
	}

	// 4. Forbidden category tags on the proposed action.
	for _, c := range g.config.ForbiddenCategories {
		if proposed.HasCategory(c) {
			violations = append(violations, Violation{
				Check: CheckForbiddenCategory,
				Reason: fmt.Sprintf("%s: action %s carries forbidden tag %s",
					CheckForbiddenCategory, proposed, c),
			})
		}
	}

	// 5. Anti-harassment: consecutive nudge cap. Only nudges accumulate.
	if proposed == policy.ActionNudge && st.ConsecutiveNudges >= g.config.MaxConsecutiveNudges {
		violations = append(violations, Violation{
			Check: CheckConsecutiveNudges,
			Reason: fmt.Sprintf("%s: %d consecutive nudges reached cap %d",
				CheckConsecutiveNudges, st.ConsecutiveNudges, g.config.MaxConsecutiveNudges),
		})
	}

	// 6. User-disabled actions.
	for _, d := range disabled {
		if d == proposed {
			violations = append(violations, Violation{
				Check:  CheckUserDisabled,
				Reason: fmt.Sprintf("%s: user disabled action %s", CheckUserDisabled, proposed),
			})
		}
	}

	return Result{Allowed: len(violations) == 0, Violations: violations}
}

// inQuietHours reports whether hour falls inside [start, end) where the
// window may wrap past midnight (e.g. 22-7).
func inQuietHours(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// #endregion check
