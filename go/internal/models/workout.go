package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/gymhub/go/internal/timer"
)

// Workout is a plan produced by the external content provider. Apart from
// the number of parts, the optional timer and each segment's type and
// duration, its content is passed through to clients untouched: fields this
// package does not know about are kept in Extra and written back out.
type Workout struct {
	ID    string
	Focus string
	Parts []Segment
	Timer *timer.Config

	// Extra holds the remaining top-level fields as received
	Extra map[string]json.RawMessage
}

func (w *Workout) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode workout: %w", err)
	}

	*w = Workout{}
	if raw, ok := fields["parts"]; ok {
		if err := json.Unmarshal(raw, &w.Parts); err != nil {
			return fmt.Errorf("decode workout parts: %w", err)
		}
		delete(fields, "parts")
	}
	if raw, ok := fields["timer"]; ok {
		if !isNull(raw) {
			var cfg timer.Config
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return fmt.Errorf("decode workout timer: %w", err)
			}
			w.Timer = &cfg
		}
		delete(fields, "timer")
	}
	// id and focus are only lifted out when they are strings
	if s, ok := stringField(fields, "id"); ok {
		w.ID = s
		delete(fields, "id")
	}
	if s, ok := stringField(fields, "focus"); ok {
		w.Focus = s
		delete(fields, "focus")
	}
	if len(fields) > 0 {
		w.Extra = fields
	}
	return nil
}

func (w Workout) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(w.Extra)+4)
	for k, v := range w.Extra {
		out[k] = v
	}

	parts := w.Parts
	if parts == nil {
		parts = []Segment{}
	}
	if err := putField(out, "parts", parts); err != nil {
		return nil, err
	}
	if w.ID != "" {
		if err := putField(out, "id", w.ID); err != nil {
			return nil, err
		}
	}
	if w.Focus != "" {
		if err := putField(out, "focus", w.Focus); err != nil {
			return nil, err
		}
	}
	if w.Timer != nil {
		if err := putField(out, "timer", w.Timer); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// Segment is one part of a workout. Only Type and DurationMin are read by
// the session; a decoded segment is written back exactly as it arrived.
type Segment struct {
	Type        string
	DurationMin *float64

	raw json.RawMessage
}

func (s *Segment) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return errors.New("invalid segment json")
	}
	*s = Segment{raw: append(json.RawMessage(nil), data...)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// not an object; passed through as is
		return nil
	}
	if t, ok := stringField(fields, "type"); ok {
		s.Type = t
	}
	if raw, ok := fields["duration_min"]; ok {
		s.DurationMin = parseMinutes(raw)
	}
	return nil
}

func (s Segment) MarshalJSON() ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}
	return json.Marshal(struct {
		Type        string   `json:"type,omitempty"`
		DurationMin *float64 `json:"duration_min,omitempty"`
	}{s.Type, s.DurationMin})
}

// Field returns the raw value of a segment field, or nil when absent
func (s Segment) Field(name string) json.RawMessage {
	if s.raw == nil {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(s.raw, &fields); err != nil {
		return nil
	}
	return fields[name]
}

// parseMinutes accepts a JSON number or a numeric string
func parseMinutes(raw json.RawMessage) *float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			return &f
		}
	}
	return nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func putField(out map[string]json.RawMessage, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode workout %s: %w", name, err)
	}
	out[name] = data
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Clone returns a copy whose slices and maps can be handed to another
// goroutine. Segment bytes are never mutated and stay shared.
func (w *Workout) Clone() *Workout {
	if w == nil {
		return nil
	}
	c := *w
	c.Parts = make([]Segment, len(w.Parts))
	copy(c.Parts, w.Parts)
	if w.Timer != nil {
		t := *w.Timer
		c.Timer = &t
	}
	if w.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(w.Extra))
		for k, v := range w.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// LastPartIndex is the highest valid active part index, or -1 when empty
func (w *Workout) LastPartIndex() int {
	if w == nil {
		return -1
	}
	return len(w.Parts) - 1
}

// WorkoutRecord is a persisted workout with the results logged against it
type WorkoutRecord struct {
	ID        string     `json:"id"`
	Date      string     `json:"date"`
	Plan      *Workout   `json:"plan"`
	CreatedAt time.Time  `json:"created_at"`
	Logs      []LogEntry `json:"logs"`
}
