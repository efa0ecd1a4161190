package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	store *session.Store
	calls []session.Command
	err   error
}

func (e *recordingExecutor) Execute(ctx context.Context, cmd session.Command, actor string) (session.Snapshot, error) {
	e.calls = append(e.calls, cmd)
	if e.err != nil {
		return session.Snapshot{}, e.err
	}
	return e.store.Apply(ctx, cmd, actor)
}

func TestWorkoutConsumer_HandleWorkoutMessage(t *testing.T) {
	exec := &recordingExecutor{store: session.NewStore()}
	wc := &WorkoutConsumer{executor: exec}

	err := wc.handleWorkoutMessage(context.Background(), "gymhub.workouts.generated",
		[]byte(`{"focus":"Legs","parts":[{"type":"Warmup","duration_min":5},{"type":"Strength"}],"timer":{"mode":"TABATA","work":20,"rest":10,"rounds":8}}`))
	require.NoError(t, err)

	snap := exec.store.Current()
	require.NotNil(t, snap.Workout)
	assert.Equal(t, "Legs", snap.Workout.Focus)
	assert.Equal(t, 20, snap.TimerConfig.WorkSec)
	assert.Len(t, exec.calls, 1)
}

func TestWorkoutConsumer_PoisonMessages(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"parts":`},
		{"unknown timer mode", `{"parts":[],"timer":{"mode":"AMRAP"}}`},
		{"invalid timer", `{"parts":[],"timer":{"mode":"EMOM","interval":60,"rounds":0}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &recordingExecutor{store: session.NewStore()}
			wc := &WorkoutConsumer{executor: exec}

			err := wc.handleWorkoutMessage(context.Background(), "gymhub.workouts.generated", []byte(tt.data))
			assert.ErrorIs(t, err, errPoisonMessage)
			assert.Nil(t, exec.store.Current().Workout)
		})
	}
}

func TestWorkoutConsumer_TransientFailureIsRetried(t *testing.T) {
	exec := &recordingExecutor{store: session.NewStore(), err: errors.New("store busy")}
	wc := &WorkoutConsumer{executor: exec}

	err := wc.handleWorkoutMessage(context.Background(), "gymhub.workouts.generated", []byte(`{"parts":[]}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errPoisonMessage)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleDisplay, ParseRole("display"))
	assert.Equal(t, RoleDisplay, ParseRole("tv"))
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleRemote, ParseRole(""))
	assert.Equal(t, RoleRemote, ParseRole("coach"))
}
