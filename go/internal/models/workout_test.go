package models

import (
	"encoding/json"
	"testing"

	"github.com/mcdev12/gymhub/go/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkout_RoundTripKeepsUnknownFields(t *testing.T) {
	in := `{
		"focus": "Pull",
		"created_by": "coach-bot",
		"tags": ["upper", 2],
		"timer": {"mode": "COUNTDOWN", "duration": 600, "rounds": 0, "work": 0, "rest": 0},
		"parts": [
			{"type": "Strength", "exercise": "Deadlift", "target_weight": 60, "scheme": {"sets": 5, "reps": 5}},
			{"type": "WOD", "duration_min": "12", "rest_sec": 90, "kids_version": null},
			"Cool down walk"
		]
	}`

	var w Workout
	require.NoError(t, json.Unmarshal([]byte(in), &w))
	assert.Equal(t, "Pull", w.Focus)
	assert.Equal(t, timer.Countdown(600), *w.Timer)
	require.Len(t, w.Parts, 3)
	assert.Equal(t, "Strength", w.Parts[0].Type)
	assert.Nil(t, w.Parts[0].DurationMin)
	require.NotNil(t, w.Parts[1].DurationMin)
	assert.Equal(t, 12.0, *w.Parts[1].DurationMin)
	assert.Empty(t, w.Parts[2].Type)
	assert.JSONEq(t, `60`, string(w.Parts[0].Field("target_weight")))

	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestWorkout_MarshalBuiltInCode(t *testing.T) {
	minutes := 8.0
	w := Workout{ID: "wod_1", Parts: []Segment{{Type: "Warmup", DurationMin: &minutes}}}

	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"wod_1","parts":[{"type":"Warmup","duration_min":8}]}`, string(out))

	out, err = json.Marshal(Workout{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"parts":[]}`, string(out))
}

func TestWorkout_NonStringIDStaysRaw(t *testing.T) {
	var w Workout
	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"parts":[]}`), &w))
	assert.Empty(t, w.ID)
	assert.JSONEq(t, `42`, string(w.Extra["id"]))

	// an assigned id replaces the raw one
	w.ID = "wod_7"
	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"wod_7","parts":[]}`, string(out))
}

func TestWorkout_RejectsNonArrayParts(t *testing.T) {
	var w Workout
	assert.Error(t, json.Unmarshal([]byte(`{"parts":{"type":"WOD"}}`), &w))
}

func TestWorkout_CloneIsIndependent(t *testing.T) {
	var w Workout
	require.NoError(t, json.Unmarshal([]byte(`{"note":"a","parts":[{"type":"WOD"}]}`), &w))

	c := w.Clone()
	c.Parts[0].Type = "changed"
	c.Extra["note"] = json.RawMessage(`"b"`)

	assert.Equal(t, "WOD", w.Parts[0].Type)
	assert.JSONEq(t, `"a"`, string(w.Extra["note"]))
}
