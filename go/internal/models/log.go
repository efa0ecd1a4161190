package models

import "time"

// LogEntry is a result logged by a participant against a workout
type LogEntry struct {
	UserID    string    `json:"user_id"`
	WorkoutID string    `json:"workout_id"`
	Exercise  string    `json:"exercise"`
	Result    string    `json:"result"`
	Feeling   string    `json:"feeling,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	LoggedAt  time.Time `json:"timestamp"`
}
