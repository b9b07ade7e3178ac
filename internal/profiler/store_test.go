package profiler

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestSnapshotStore(t *testing.T) *SnapshotStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSnapshotStore(db)
	require.NoError(t, err)
	return store
}

func sampleDNA(userID string) DNA {
	return DNA{
		UserID:      userID,
		Chronotype:  Chronotype{PeakHours: [3]int{6, 7, 8}, WeekendPattern: "similar"},
		Discipline:  DisciplineProfile{StreakSensitivity: 0.7, RecoverySpeedDays: 2},
		Predictions: Predictions{DropoutRisk72h: 0.3, StreakProbability30d: 0.6},
		GeneratedAt: time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC),
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	store := newTestSnapshotStore(t)
	ctx := context.Background()

	_, found, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	version, err := store.Save(ctx, sampleDNA("u1"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	got, found, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, [3]int{6, 7, 8}, got.Chronotype.PeakHours)
	assert.InDelta(t, 0.3, got.Predictions.DropoutRisk72h, 1e-9)
}

func TestSnapshotStoreVersionIncrements(t *testing.T) {
	store := newTestSnapshotStore(t)
	ctx := context.Background()

	v1, err := store.Save(ctx, sampleDNA("u1"), 0)
	require.NoError(t, err)

	dna := sampleDNA("u1")
	dna.Discipline.StreakSensitivity = 0.9
	v2, err := store.Save(ctx, dna, v1)
	require.NoError(t, err)
	assert.Equal(t, v1+1, v2)

	got, _, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, got.Discipline.StreakSensitivity, 1e-9)
}

func TestSnapshotStoreStaleVersionConflicts(t *testing.T) {
	store := newTestSnapshotStore(t)
	ctx := context.Background()

	v1, err := store.Save(ctx, sampleDNA("u1"), 0)
	require.NoError(t, err)
	_, err = store.Save(ctx, sampleDNA("u1"), v1)
	require.NoError(t, err)

	// A writer still holding v1 must lose.
	_, err = store.Save(ctx, sampleDNA("u1"), v1)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// So must a writer that never read at all.
	_, err = store.Save(ctx, sampleDNA("u1"), 0)
	assert.ErrorIs(t, err, ErrVersionConflict)
}
