package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gymhub/go/internal/models"
	"github.com/mcdev12/gymhub/go/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 15, 7, 0, 0, 0, time.UTC))
	return NewStore(WithClock(clock)), clock
}

func workoutWithParts(n int) *models.Workout {
	w := &models.Workout{Focus: "Engine"}
	for i := 0; i < n; i++ {
		w.Parts = append(w.Parts, models.Segment{Type: "Part"})
	}
	return w
}

func mustApply(t *testing.T, s *Store, cmd Command) Snapshot {
	t.Helper()
	snap, err := s.Apply(context.Background(), cmd, "test")
	require.NoError(t, err)
	return snap
}

func TestStore_InitialState(t *testing.T) {
	s, _ := newTestStore(t)
	snap := s.Current()

	assert.False(t, snap.TimerRunning)
	assert.Equal(t, 0, snap.ElapsedSeconds)
	assert.Equal(t, timer.Stopwatch(), snap.TimerConfig)
	assert.Empty(t, snap.Rounds)
	assert.Nil(t, snap.Workout)
	assert.Equal(t, uint64(0), snap.Version)
}

func TestStore_StartStopTimerRecordsBaseline(t *testing.T) {
	s, clock := newTestStore(t)

	snap := mustApply(t, s, StartStopTimer{})
	assert.True(t, snap.TimerRunning)
	assert.Equal(t, 0, snap.ElapsedSeconds)

	clock.Advance(42*time.Second + 600*time.Millisecond)
	// a late joiner sees the run time folded in
	assert.Equal(t, 42, s.Current().ElapsedSeconds)

	snap = mustApply(t, s, StartStopTimer{})
	assert.False(t, snap.TimerRunning)
	assert.Equal(t, 42, snap.ElapsedSeconds)

	// stopped clock does not move
	clock.Advance(time.Minute)
	assert.Equal(t, 42, s.Current().ElapsedSeconds)

	snap = mustApply(t, s, StartStopTimer{})
	clock.Advance(8 * time.Second)
	snap = mustApply(t, s, StartStopTimer{})
	assert.Equal(t, 50, snap.ElapsedSeconds)
}

func TestStore_AddRound(t *testing.T) {
	s, _ := newTestStore(t)

	mustApply(t, s, AddRound{Participant: "Nina"})
	snap := mustApply(t, s, AddRound{Participant: "Nina"})
	snap = mustApply(t, s, AddRound{Participant: "Ben"})

	assert.Equal(t, map[string]int{"Nina": 2, "Ben": 1}, snap.Rounds)

	_, err := s.Apply(context.Background(), AddRound{Participant: "  "}, "test")
	assert.ErrorIs(t, err, ErrMalformedCommand)
}

func TestStore_ConcurrentAddRoundNeverLosesIncrements(t *testing.T) {
	s, _ := newTestStore(t)
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Apply(context.Background(), AddRound{Participant: "X"}, "remote"); err != nil {
				t.Errorf("apply: %v", err)
			}
		}()
	}
	wg.Wait()

	snap := s.Current()
	assert.Equal(t, n, snap.Rounds["X"])
	assert.Equal(t, uint64(n), snap.Version)
}

func TestStore_SetActivePartClamps(t *testing.T) {
	s, _ := newTestStore(t)
	mustApply(t, s, SetWorkout{Workout: workoutWithParts(5)})

	snap := mustApply(t, s, SetActivePart{Index: 7})
	assert.Equal(t, 4, snap.ActivePartIndex)

	snap = mustApply(t, s, SetActivePart{Index: -3})
	assert.Equal(t, 0, snap.ActivePartIndex)

	snap = mustApply(t, s, SetActivePart{Index: 2})
	assert.Equal(t, 2, snap.ActivePartIndex)
}

func TestStore_SetActivePartWithoutWorkoutIsNoop(t *testing.T) {
	s, _ := newTestStore(t)

	snap := mustApply(t, s, SetActivePart{Index: 3})
	assert.Equal(t, 0, snap.ActivePartIndex)
	assert.Nil(t, snap.Workout)
}

func TestStore_SetActivePartAutoConfiguresCountdown(t *testing.T) {
	s, clock := newTestStore(t)
	w := workoutWithParts(3)
	minutes := 12.0
	w.Parts[1].DurationMin = &minutes
	mustApply(t, s, SetWorkout{Workout: w})

	mustApply(t, s, StartStopTimer{})
	clock.Advance(30 * time.Second)

	snap := mustApply(t, s, SetActivePart{Index: 1})
	assert.Equal(t, timer.Countdown(720), snap.TimerConfig)
	assert.False(t, snap.TimerRunning)
	assert.Equal(t, 0, snap.ElapsedSeconds)
}

func TestStore_SetActivePartIgnoresUnusableDuration(t *testing.T) {
	tests := []struct {
		name    string
		minutes float64
	}{
		{"rounds down to zero seconds", 0.001},
		{"negative", -5},
		{"beyond a day", 1e12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			w := workoutWithParts(2)
			minutes := tt.minutes
			w.Parts[0].DurationMin = &minutes
			mustApply(t, s, SetWorkout{Workout: w})
			mustApply(t, s, ConfigureTimer{Config: timer.EMOM(60, 10)})

			snap := mustApply(t, s, SetActivePart{Index: 0})
			assert.Equal(t, 0, snap.ActivePartIndex)
			assert.Equal(t, timer.EMOM(60, 10), snap.TimerConfig)
			assert.NoError(t, snap.TimerConfig.Validate())
		})
	}
}

func TestStore_SetWorkoutResetsIndexAndTimer(t *testing.T) {
	s, clock := newTestStore(t)
	mustApply(t, s, SetWorkout{Workout: workoutWithParts(4)})
	mustApply(t, s, SetActivePart{Index: 3})
	mustApply(t, s, StartStopTimer{})
	clock.Advance(10 * time.Second)

	cfg := timer.EMOM(60, 10)
	w := workoutWithParts(2)
	w.Timer = &cfg
	snap := mustApply(t, s, SetWorkout{Workout: w})

	assert.Equal(t, 0, snap.ActivePartIndex)
	assert.Len(t, snap.Workout.Parts, 2)
	assert.Equal(t, cfg, snap.TimerConfig)
	assert.False(t, snap.TimerRunning)
	assert.Equal(t, 0, snap.ElapsedSeconds)
	assert.Equal(t, "wod_20250315070010", snap.Workout.ID)
}

func TestStore_SetWorkoutRejectsInvalidEmbeddedTimer(t *testing.T) {
	s, _ := newTestStore(t)
	before := mustApply(t, s, SetWorkout{Workout: workoutWithParts(1)})

	bad := timer.Countdown(0)
	w := workoutWithParts(3)
	w.Timer = &bad
	_, err := s.Apply(context.Background(), SetWorkout{Workout: w}, "admin")
	assert.ErrorIs(t, err, timer.ErrInvalidConfig)
	assert.Equal(t, before, s.Current())
}

func TestStore_ConfigureTimer(t *testing.T) {
	s, clock := newTestStore(t)
	mustApply(t, s, StartStopTimer{})
	clock.Advance(15 * time.Second)

	snap := mustApply(t, s, ConfigureTimer{Config: timer.Tabata(20, 10, 8)})
	assert.Equal(t, timer.Tabata(20, 10, 8), snap.TimerConfig)
	assert.False(t, snap.TimerRunning)
	assert.Equal(t, 0, snap.ElapsedSeconds)
}

func TestStore_ConfigureTimerEmptyModeIsStopwatch(t *testing.T) {
	s, _ := newTestStore(t)
	mustApply(t, s, ConfigureTimer{Config: timer.Countdown(600)})

	snap := mustApply(t, s, ConfigureTimer{Config: timer.Config{}})
	assert.Equal(t, timer.Stopwatch(), snap.TimerConfig)
}

func TestStore_ConfigureTimerRejectsInvalidParameters(t *testing.T) {
	s, _ := newTestStore(t)
	before := mustApply(t, s, ConfigureTimer{Config: timer.Countdown(600)})

	invalid := []timer.Config{
		timer.Countdown(0),
		timer.Countdown(-1),
		timer.EMOM(0, 10),
		timer.EMOM(60, 0),
		timer.Tabata(20, 0, 8),
		{Mode: "AMRAP"},
	}
	for _, cfg := range invalid {
		_, err := s.Apply(context.Background(), ConfigureTimer{Config: cfg}, "admin")
		assert.ErrorIs(t, err, timer.ErrInvalidConfig, "config %+v", cfg)
	}

	// prior configuration remains active and nothing was committed
	assert.Equal(t, before, s.Current())
}

func TestStore_ResetTimerIsIdempotent(t *testing.T) {
	s, clock := newTestStore(t)
	mustApply(t, s, AddRound{Participant: "Nina"})
	mustApply(t, s, StartStopTimer{})
	clock.Advance(90 * time.Second)

	once := mustApply(t, s, ResetTimer{})
	twice := mustApply(t, s, ResetTimer{})

	assert.Equal(t, 0, once.ElapsedSeconds)
	assert.False(t, once.TimerRunning)
	assert.Empty(t, once.Rounds)

	// identical apart from the sequence number
	twice.Version = once.Version
	assert.Equal(t, once, twice)
}

func TestStore_ResetRoundsKeepsTimer(t *testing.T) {
	s, clock := newTestStore(t)
	mustApply(t, s, AddRound{Participant: "Lio"})
	mustApply(t, s, StartStopTimer{})
	clock.Advance(5 * time.Second)

	snap := mustApply(t, s, ResetRounds{})
	assert.Empty(t, snap.Rounds)
	assert.True(t, snap.TimerRunning)
	assert.Equal(t, 5, snap.ElapsedSeconds)
}

func TestStore_SubscribersSeeEverySnapshotInOrder(t *testing.T) {
	s, _ := newTestStore(t)

	var versions []uint64
	s.Subscribe(func(snap Snapshot) {
		versions = append(versions, snap.Version)
	})

	mustApply(t, s, AddRound{Participant: "A"})
	_, err := s.Apply(context.Background(), ConfigureTimer{Config: timer.Countdown(0)}, "admin")
	require.Error(t, err)
	mustApply(t, s, ResetRounds{})
	mustApply(t, s, StartStopTimer{})

	assert.Equal(t, []uint64{1, 2, 3}, versions)
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	s, _ := newTestStore(t)
	mustApply(t, s, SetWorkout{Workout: workoutWithParts(2)})
	snap := mustApply(t, s, AddRound{Participant: "Nina"})

	snap.Rounds["Nina"] = 99
	snap.Workout.Parts[0].Type = "mutated"

	current := s.Current()
	assert.Equal(t, 1, current.Rounds["Nina"])
	assert.Equal(t, "Part", current.Workout.Parts[0].Type)
}

func TestStore_ApplyHonoursCancelledContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Apply(ctx, AddRound{Participant: "Nina"}, "test")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Current().Rounds)
}

func TestStore_AttachSeesCurrentSnapshot(t *testing.T) {
	store := NewStore()
	_, err := store.Apply(context.Background(), AddRound{Participant: "Lio"}, "test")
	require.NoError(t, err)

	var got Snapshot
	store.Attach(func(s Snapshot) { got = s })
	assert.Equal(t, uint64(1), got.Version)
	assert.Equal(t, 1, got.Rounds["Lio"])
}
