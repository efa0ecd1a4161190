package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/gymhub/go/internal/models"
)

// EventType names an outbound integration event
type EventType string

const (
	EventTypeLogResult     EventType = "LogResult"
	EventTypeWorkoutLoaded EventType = "WorkoutLoaded"
)

// Event is a fire-and-forget notification for external collaborators
type Event struct {
	ID        uuid.UUID       `json:"eventId"`
	Type      EventType       `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"timestamp"`
}

// Publisher delivers events to the bus
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogResultPayload is what the history service receives for a logged result
type LogResultPayload struct {
	Participant string `json:"participant"`
	WorkoutRef  string `json:"workout_ref"`
	Exercise    string `json:"exercise"`
	Result      string `json:"result"`
	Feeling     string `json:"feeling,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// WorkoutLoadedPayload announces the workout that is now on the display
type WorkoutLoadedPayload struct {
	WorkoutID string `json:"workout_id"`
	Parts     int    `json:"parts"`
	Focus     string `json:"focus,omitempty"`
}

// NewLogResultEvent builds the event emitted after a client logs a result
func NewLogResultEvent(entry models.LogEntry, now time.Time) (Event, error) {
	return newEvent(EventTypeLogResult, LogResultPayload{
		Participant: entry.UserID,
		WorkoutRef:  entry.WorkoutID,
		Exercise:    entry.Exercise,
		Result:      entry.Result,
		Feeling:     entry.Feeling,
		Notes:       entry.Notes,
	}, now)
}

// NewWorkoutLoadedEvent builds the event emitted after SET_WORKOUT
func NewWorkoutLoadedEvent(w *models.Workout, now time.Time) (Event, error) {
	if w == nil {
		return Event{}, fmt.Errorf("workout cannot be nil")
	}
	return newEvent(EventTypeWorkoutLoaded, WorkoutLoadedPayload{
		WorkoutID: w.ID,
		Parts:     len(w.Parts),
		Focus:     w.Focus,
	}, now)
}

func newEvent(t EventType, payload any, now time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      t,
		Payload:   data,
		CreatedAt: now.UTC(),
	}, nil
}
