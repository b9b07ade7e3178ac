package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/sagecoach/engine/internal/policy"
)

// #region manager

// Manager caches per-user memory snapshots over the backing store. Any
// mutation clears the user's cache entry; the next read rebuilds it.
type Manager struct {
	store *Store
	cache *ristretto.Cache
}

// NewManager creates a manager with an in-process snapshot cache.
func NewManager(store *Store) (*Manager, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 14,
		MaxCost:     1 << 12, // snapshots are cost 1 each
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("memory cache: %w", err)
	}
	return &Manager{store: store, cache: cache}, nil
}

// #endregion manager

// #region load

// Load returns the cached snapshot when present, else fetches the profile
// (creating a default on first use), top facts, confident patterns and
// recent feedback concurrently, composes and caches the result. The reload
// path is idempotent and side-effect-free beyond first-use profile
// creation, so concurrent reloads are safe.
func (m *Manager) Load(ctx context.Context, userID string) (Snapshot, error) {
	if v, ok := m.cache.Get(userID); ok {
		if snap, ok := v.(Snapshot); ok {
			return snap, nil
		}
	}

	var (
		wg       sync.WaitGroup
		profile  Profile
		facts    []Fact
		patterns []Pattern
		feedback []Feedback
		errs     [4]error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		profile, errs[0] = m.store.ProfileFor(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		facts, errs[1] = m.store.TopFacts(ctx, userID, factLimit)
	}()
	go func() {
		defer wg.Done()
		patterns, errs[2] = m.store.ConfidentPatterns(ctx, userID, patternMinConf, patternLimit)
	}()
	go func() {
		defer wg.Done()
		feedback, errs[3] = m.store.RecentFeedback(ctx, userID, feedbackLimit)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Snapshot{}, fmt.Errorf("load memory %s: %w", userID, err)
		}
	}

	snap := Snapshot{
		Profile:        profile,
		Facts:          facts,
		Patterns:       patterns,
		RecentFeedback: feedback,
		LoadedAt:       time.Now().UTC(),
	}
	m.cache.Set(userID, snap, 1)
	m.cache.Wait()
	return snap, nil
}

// #endregion load

// #region mutations

// AddFact writes through and invalidates the cached snapshot.
func (m *Manager) AddFact(ctx context.Context, userID string, f Fact) error {
	if err := m.store.AddFact(ctx, userID, f); err != nil {
		return err
	}
	m.invalidate(userID)
	return nil
}

// AddPattern writes through and invalidates the cached snapshot.
func (m *Manager) AddPattern(ctx context.Context, userID string, p Pattern) error {
	if err := m.store.AddPattern(ctx, userID, p); err != nil {
		return err
	}
	m.invalidate(userID)
	return nil
}

// RecordFeedback writes through and invalidates the cached snapshot.
func (m *Manager) RecordFeedback(ctx context.Context, userID string, f Feedback) error {
	if err := m.store.AddFeedback(ctx, userID, f); err != nil {
		return err
	}
	m.invalidate(userID)
	return nil
}

// UpdateProfile writes through and invalidates the cached snapshot.
func (m *Manager) UpdateProfile(ctx context.Context, p Profile) error {
	if err := m.store.SaveProfile(ctx, p); err != nil {
		return err
	}
	m.invalidate(p.UserID)
	return nil
}

func (m *Manager) invalidate(userID string) {
	m.cache.Del(userID)
	m.cache.Wait()
}

// #endregion mutations

// #region derived

// SuccessRate returns helpful/total over the snapshot's feedback, or the
// neutral prior 0.5 when no feedback exists.
func (s Snapshot) SuccessRate() float64 {
	if len(s.RecentFeedback) == 0 {
		return 0.5
	}
	helpful := 0
	for _, f := range s.RecentFeedback {
		if f.Helpful {
			helpful++
		}
	}
	return float64(helpful) / float64(len(s.RecentFeedback))
}

// EffectiveActions surfaces action types with at least three occurrences
// and a helpful rate of 60% or better, sorted descending by rate. The
// sample floor guards against overclaiming from thin feedback.
func (s Snapshot) EffectiveActions() []ActionStat {
	type acc struct{ total, helpful int }
	byAction := make(map[policy.ActionType]*acc)
	for _, f := range s.RecentFeedback {
		a, ok := byAction[f.Action]
		if !ok {
			a = &acc{}
			byAction[f.Action] = a
		}
		a.total++
		if f.Helpful {
			a.helpful++
		}
	}

	var out []ActionStat
	for _, action := range policy.Actions() {
		a, ok := byAction[action]
		if !ok || a.total < minActionSamples {
			continue
		}
		rate := float64(a.helpful) / float64(a.total)
		if rate < minEffectiveRatio {
			continue
		}
		out = append(out, ActionStat{Action: action, Total: a.total, HelpfulRate: rate})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HelpfulRate > out[j].HelpfulRate
	})
	return out
}

// PromptContext renders a deterministic text summary of the snapshot for
// the inference step.
func (s Snapshot) PromptContext() string {
	var b strings.Builder

	b.WriteString("## User profile\n")
	if s.Profile.Identity != "" {
		fmt.Fprintf(&b, "Identity: %s\n", s.Profile.Identity)
	}
	if len(s.Profile.Values) > 0 {
		fmt.Fprintf(&b, "Values: %s\n", strings.Join(s.Profile.Values, ", "))
	}
	if s.Profile.CommunicationStyle != "" {
		fmt.Fprintf(&b, "Communication style: %s\n", s.Profile.CommunicationStyle)
	}
	if len(s.Profile.Constraints) > 0 {
		fmt.Fprintf(&b, "Constraints: %s\n", strings.Join(s.Profile.Constraints, ", "))
	}

	if len(s.Facts) > 0 {
		b.WriteString("\n## Known facts\n")
		for _, f := range s.Facts {
			fmt.Fprintf(&b, "- %s (%.2f)\n", f.Statement, f.Confidence)
		}
	}

	if len(s.Patterns) > 0 {
		b.WriteString("\n## Observed patterns\n")
		for _, p := range s.Patterns {
			fmt.Fprintf(&b, "- %s (%.2f)\n", p.Statement, p.Confidence)
		}
	}

	return b.String()
}

// #endregion derived
