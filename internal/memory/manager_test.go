package memory

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/sagecoach/engine/internal/policy"
)

func newTestManager(t *testing.T) (*Manager, *Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	m, err := NewManager(store)
	require.NoError(t, err)
	return m, store
}

func TestLoadCreatesDefaultProfile(t *testing.T) {
	m, _ := newTestManager(t)
	snap, err := m.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", snap.Profile.UserID)
	assert.Empty(t, snap.Facts)
	assert.Empty(t, snap.RecentFeedback)
}

func TestMutationThenReadNeverStale(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// Warm the cache.
	_, err := m.Load(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, m.AddFact(ctx, "u1", Fact{Statement: "prefers mornings", Confidence: 0.9}))
	snap, err := m.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, snap.Facts, 1)
	assert.Equal(t, "prefers mornings", snap.Facts[0].Statement)

	require.NoError(t, m.RecordFeedback(ctx, "u1", Feedback{Action: policy.ActionNudge, Helpful: true}))
	snap, err = m.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, snap.RecentFeedback, 1)

	profile := snap.Profile
	profile.Identity = "early riser"
	require.NoError(t, m.UpdateProfile(ctx, profile))
	snap, err = m.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "early riser", snap.Profile.Identity)
}

func TestLoadFiltersLowConfidencePatterns(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, store.AddPattern(ctx, "u1", Pattern{Statement: "strong", Confidence: 0.8}))
	require.NoError(t, store.AddPattern(ctx, "u1", Pattern{Statement: "weak", Confidence: 0.3}))

	snap, err := m.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, snap.Patterns, 1)
	assert.Equal(t, "strong", snap.Patterns[0].Statement)
}

func TestSuccessRatePrior(t *testing.T) {
	assert.Equal(t, 0.5, Snapshot{}.SuccessRate(), "no feedback falls back to the neutral prior")

	snap := Snapshot{RecentFeedback: []Feedback{
		{Helpful: true}, {Helpful: true}, {Helpful: false}, {Helpful: true},
	}}
	assert.InDelta(t, 0.75, snap.SuccessRate(), 1e-9)
}

func TestEffectiveActionsThresholds(t *testing.T) {
	feedback := []Feedback{
		// celebrate: 3 samples, all helpful, qualifies.
		{Action: policy.ActionCelebrate, Helpful: true},
		{Action: policy.ActionCelebrate, Helpful: true},
		{Action: policy.ActionCelebrate, Helpful: true},
		// nudge: 4 samples, 3 helpful (0.75), qualifies.
		{Action: policy.ActionNudge, Helpful: true},
		{Action: policy.ActionNudge, Helpful: true},
		{Action: policy.ActionNudge, Helpful: true},
		{Action: policy.ActionNudge, Helpful: false},
		// reframe: 2 samples, below the sample floor.
		{Action: policy.ActionReframe, Helpful: true},
		{Action: policy.ActionReframe, Helpful: true},
		// challenge: 4 samples, 1 helpful, below the rate floor.
		{Action: policy.ActionChallenge, Helpful: true},
		{Action: policy.ActionChallenge},
		{Action: policy.ActionChallenge},
		{Action: policy.ActionChallenge},
	}

	stats := Snapshot{RecentFeedback: feedback}.EffectiveActions()
	require.Len(t, stats, 2)
	assert.Equal(t, policy.ActionCelebrate, stats[0].Action, "sorted by helpful rate")
	assert.Equal(t, policy.ActionNudge, stats[1].Action)
}

func TestPromptContextDeterministic(t *testing.T) {
	snap := Snapshot{
		Profile: Profile{
			UserID:             "u1",
			Identity:           "marathon trainee",
			Values:             []string{"health", "discipline"},
			CommunicationStyle: "direct",
		},
		Facts: []Fact{
			{Statement: "runs at dawn", Confidence: 0.9},
			{Statement: "skips Mondays", Confidence: 0.7},
		},
		Patterns: []Pattern{{Statement: "drops habits after travel", Confidence: 0.8}},
	}

	first := snap.PromptContext()
	assert.Equal(t, first, snap.PromptContext())
	assert.Contains(t, first, "marathon trainee")
	assert.Contains(t, first, "runs at dawn (0.90)")
	assert.Contains(t, first, "drops habits after travel")
}

func TestDisabledActionsParsing(t *testing.T) {
	p := Profile{Constraints: []string{"challenge", "no weekend pings", "nudge"}}
	assert.Equal(t, []policy.ActionType{policy.ActionChallenge, policy.ActionNudge}, p.DisabledActions())
}

func TestRecentFeedbackNewestFirst(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AddFeedback(ctx, "u1", Feedback{Action: policy.ActionNudge, CreatedAt: base}))
	require.NoError(t, store.AddFeedback(ctx, "u1", Feedback{Action: policy.ActionReframe, CreatedAt: base.Add(time.Hour)}))

	snap, err := m.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, snap.RecentFeedback, 2)
	assert.Equal(t, policy.ActionReframe, snap.RecentFeedback[0].Action)
}
