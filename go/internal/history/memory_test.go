package history

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gymhub/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_LatestWorkout(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 15, 7, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clock)

	_, err := store.LatestWorkout(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveWorkout(ctx, &models.Workout{ID: "wod_a", Focus: "Legs"}))
	clock.Advance(time.Hour)
	require.NoError(t, store.SaveWorkout(ctx, &models.Workout{ID: "wod_b", Focus: "Engine"}))

	latest, err := store.LatestWorkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wod_b", latest.ID)

	// saving again keeps the first creation time
	clock.Advance(time.Hour)
	require.NoError(t, store.SaveWorkout(ctx, &models.Workout{ID: "wod_a", Focus: "Legs v2"}))
	latest, err = store.LatestWorkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wod_b", latest.ID)
}

func TestMemoryStore_ListWorkoutsWithLogs(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 15, 7, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clock)

	for _, id := range []string{"wod_1", "wod_2", "wod_3"} {
		require.NoError(t, store.SaveWorkout(ctx, &models.Workout{ID: id}))
		clock.Advance(time.Minute)
	}
	require.NoError(t, store.InsertLog(ctx, models.LogEntry{UserID: "u_nina", WorkoutID: "wod_3", Exercise: "Row", Result: "2:01"}))
	require.NoError(t, store.InsertLog(ctx, models.LogEntry{UserID: "u_ben", WorkoutID: "wod_1", Exercise: "Row", Result: "2:30"}))

	recs, err := store.ListWorkouts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "wod_3", recs[0].ID)
	assert.Equal(t, "wod_2", recs[1].ID)
	require.Len(t, recs[0].Logs, 1)
	assert.Equal(t, "u_nina", recs[0].Logs[0].UserID)
	assert.Equal(t, clock.Now(), recs[0].Logs[0].LoggedAt)
	assert.NotNil(t, recs[1].Logs)
	assert.Empty(t, recs[1].Logs)
	assert.Equal(t, "2025-03-15", recs[0].Date)
}

func TestMemoryStore_RejectsWorkoutWithoutID(t *testing.T) {
	store := NewMemoryStore(nil)
	assert.ErrorIs(t, store.SaveWorkout(context.Background(), &models.Workout{}), ErrMissingID)
	assert.ErrorIs(t, store.SaveWorkout(context.Background(), nil), ErrMissingID)
}

func TestMemoryStore_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewMemoryStore(nil)
	assert.ErrorIs(t, store.InsertLog(ctx, models.LogEntry{}), context.Canceled)
}
