package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/gymhub/go/internal/models"
	"github.com/mcdev12/gymhub/go/internal/timer"
)

// ErrMalformedCommand is returned for unknown action tags and missing fields
var ErrMalformedCommand = errors.New("malformed command")

// Action is the wire tag of a command
type Action string

const (
	ActionToggleTimer    Action = "TOGGLE_TIMER"
	ActionAddRound       Action = "ADD_ROUND"
	ActionSetActivePart  Action = "SET_ACTIVE_PART"
	ActionSetWorkout     Action = "SET_WORKOUT"
	ActionConfigureTimer Action = "CONFIGURE_TIMER"
	ActionResetTimer     Action = "RESET_TIMER"
	ActionResetRounds    Action = "RESET_ROUNDS"
)

// Command is the closed set of mutations the store accepts. The unexported
// marker keeps other packages from adding variants.
type Command interface {
	Action() Action
	command()
}

// StartStopTimer toggles the running flag
type StartStopTimer struct{}

// AddRound increments one participant's round counter
type AddRound struct {
	Participant string
}

// SetActivePart moves the highlighted workout segment
type SetActivePart struct {
	Index int
}

// SetWorkout replaces the loaded workout
type SetWorkout struct {
	Workout *models.Workout
}

// ConfigureTimer replaces the timer configuration
type ConfigureTimer struct {
	Config timer.Config
}

// ResetTimer zeroes the clock and clears every round counter
type ResetTimer struct{}

// ResetRounds clears the round counters and leaves the timer alone
type ResetRounds struct{}

func (StartStopTimer) Action() Action { return ActionToggleTimer }
func (AddRound) Action() Action       { return ActionAddRound }
func (SetActivePart) Action() Action  { return ActionSetActivePart }
func (SetWorkout) Action() Action     { return ActionSetWorkout }
func (ConfigureTimer) Action() Action { return ActionConfigureTimer }
func (ResetTimer) Action() Action     { return ActionResetTimer }
func (ResetRounds) Action() Action    { return ActionResetRounds }

func (StartStopTimer) command() {}
func (AddRound) command()       {}
func (SetActivePart) command()  {}
func (SetWorkout) command()     {}
func (ConfigureTimer) command() {}
func (ResetTimer) command()     {}
func (ResetRounds) command()    {}

// ActionPayload is the client-side body of an ACTION envelope
type ActionPayload struct {
	Action      Action          `json:"action"`
	User        string          `json:"user,omitempty"`
	Participant string          `json:"participant,omitempty"`
	Index       *int            `json:"index,omitempty"`
	Workout     json.RawMessage `json:"workout,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// DecodeCommand turns an ACTION payload into a Command. Anything outside
// the known action set is rejected here, before it reaches the store.
func DecodeCommand(data []byte) (Command, error) {
	var p ActionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	switch Action(strings.ToUpper(string(p.Action))) {
	case ActionToggleTimer, "START_STOP_TIMER":
		return StartStopTimer{}, nil

	case ActionAddRound:
		name := p.Participant
		if name == "" {
			name = p.User
		}
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: ADD_ROUND requires a participant", ErrMalformedCommand)
		}
		return AddRound{Participant: name}, nil

	case ActionSetActivePart:
		if p.Index == nil {
			return nil, fmt.Errorf("%w: SET_ACTIVE_PART requires an index", ErrMalformedCommand)
		}
		return SetActivePart{Index: *p.Index}, nil

	case ActionSetWorkout:
		if isEmptyJSON(p.Workout) {
			return nil, fmt.Errorf("%w: SET_WORKOUT requires a workout", ErrMalformedCommand)
		}
		w, err := DecodeWorkout(p.Workout)
		if err != nil {
			return nil, err
		}
		return SetWorkout{Workout: w}, nil

	case ActionConfigureTimer:
		if isEmptyJSON(p.Config) {
			return nil, fmt.Errorf("%w: CONFIGURE_TIMER requires a config", ErrMalformedCommand)
		}
		cfg, err := timer.DecodeStrict(p.Config)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
		}
		return ConfigureTimer{Config: cfg}, nil

	case ActionResetTimer:
		return ResetTimer{}, nil

	case ActionResetRounds:
		return ResetRounds{}, nil

	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrMalformedCommand, p.Action)
	}
}

// DecodeWorkout parses a workout plan, rejecting unknown embedded timer modes
func DecodeWorkout(data []byte) (*models.Workout, error) {
	var w models.Workout
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: decode workout: %v", ErrMalformedCommand, err)
	}

	var embedded struct {
		Timer json.RawMessage `json:"timer"`
	}
	if err := json.Unmarshal(data, &embedded); err == nil && !isEmptyJSON(embedded.Timer) {
		cfg, err := timer.DecodeStrict(embedded.Timer)
		if err != nil {
			return nil, fmt.Errorf("%w: workout timer: %w", ErrMalformedCommand, err)
		}
		w.Timer = &cfg
	}
	return &w, nil
}

// EncodeCommand is the inverse of DecodeCommand, used by clients
func EncodeCommand(cmd Command) ([]byte, error) {
	p := ActionPayload{Action: cmd.Action()}
	switch c := cmd.(type) {
	case AddRound:
		p.User = c.Participant
	case SetActivePart:
		idx := c.Index
		p.Index = &idx
	case SetWorkout:
		data, err := json.Marshal(c.Workout)
		if err != nil {
			return nil, fmt.Errorf("encode workout: %w", err)
		}
		p.Workout = data
	case ConfigureTimer:
		data, err := json.Marshal(c.Config)
		if err != nil {
			return nil, fmt.Errorf("encode timer config: %w", err)
		}
		p.Config = data
	}
	return json.Marshal(p)
}

func isEmptyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
