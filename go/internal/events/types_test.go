package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mcdev12/gymhub/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogResultEvent(t *testing.T) {
	now := time.Date(2025, 3, 15, 8, 30, 0, 0, time.FixedZone("CET", 3600))
	event, err := NewLogResultEvent(models.LogEntry{
		UserID:    "u_nina",
		WorkoutID: "wod_20250315070000",
		Exercise:  "Back Squat",
		Result:    "5x5 @ 60kg",
		Feeling:   "strong",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, EventTypeLogResult, event.Type)
	assert.Equal(t, now.UTC(), event.CreatedAt)
	assert.JSONEq(t, `{
		"participant":"u_nina",
		"workout_ref":"wod_20250315070000",
		"exercise":"Back Squat",
		"result":"5x5 @ 60kg",
		"feeling":"strong"
	}`, string(event.Payload))
	assert.Equal(t, "gymhub.events.LogResult", Subject(event.Type))
}

func TestNewWorkoutLoadedEvent(t *testing.T) {
	w := &models.Workout{ID: "wod_1", Focus: "Legs", Parts: make([]models.Segment, 3)}
	event, err := NewWorkoutLoadedEvent(w, time.Now())
	require.NoError(t, err)

	var payload WorkoutLoadedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, WorkoutLoadedPayload{WorkoutID: "wod_1", Parts: 3, Focus: "Legs"}, payload)

	_, err = NewWorkoutLoadedEvent(nil, time.Now())
	assert.Error(t, err)
}
