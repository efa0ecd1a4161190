package timer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Mode identifies which timer variant is active
type Mode string

const (
	ModeStopwatch Mode = "STOPWATCH"
	ModeCountdown Mode = "COUNTDOWN"
	ModeEMOM      Mode = "EMOM"
	ModeTabata    Mode = "TABATA"
)

// ErrUnknownMode is returned by ParseMode for a non-empty, unrecognised mode
var ErrUnknownMode = errors.New("unknown timer mode")

// ErrInvalidConfig wraps every parameter validation failure
var ErrInvalidConfig = errors.New("invalid timer config")

// ParseMode maps a wire mode string onto a Mode. An empty string is Stopwatch.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(ModeStopwatch):
		return ModeStopwatch, nil
	case string(ModeCountdown):
		return ModeCountdown, nil
	case string(ModeEMOM), "INTERVAL":
		return ModeEMOM, nil
	case string(ModeTabata), "WORK_REST":
		return ModeTabata, nil
	default:
		return ModeStopwatch, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Config is the active timer configuration. Only the fields relevant to
// Mode are meaningful; Normalize zeroes the rest.
type Config struct {
	Mode        Mode `json:"mode"`
	DurationSec int  `json:"duration"`
	IntervalSec int  `json:"interval,omitempty"`
	Rounds      int  `json:"rounds"`
	WorkSec     int  `json:"work"`
	RestSec     int  `json:"rest"`
}

// Stopwatch returns the default configuration
func Stopwatch() Config {
	return Config{Mode: ModeStopwatch}
}

// Countdown returns a countdown configuration
func Countdown(durationSec int) Config {
	return Config{Mode: ModeCountdown, DurationSec: durationSec}
}

// EMOM returns an interval-repeat configuration
func EMOM(intervalSec, rounds int) Config {
	return Config{Mode: ModeEMOM, IntervalSec: intervalSec, Rounds: rounds}
}

// Tabata returns a work/rest cycle configuration
func Tabata(workSec, restSec, rounds int) Config {
	return Config{Mode: ModeTabata, WorkSec: workSec, RestSec: restSec, Rounds: rounds}
}

// UnmarshalJSON accepts the flat wire shape. Unknown modes decode to
// Stopwatch so a display never breaks on a config it does not understand;
// DecodeStrict is used where unknown modes must be rejected.
func (c *Config) UnmarshalJSON(data []byte) error {
	raw, err := decodeRaw(data)
	if err != nil {
		return err
	}
	mode, _ := ParseMode(raw.Mode)
	*c = raw.toConfig(mode).Normalize()
	return nil
}

// DecodeStrict decodes a config and fails on an unrecognised mode
func DecodeStrict(data []byte) (Config, error) {
	raw, err := decodeRaw(data)
	if err != nil {
		return Config{}, err
	}
	mode, err := ParseMode(raw.Mode)
	if err != nil {
		return Config{}, err
	}
	return raw.toConfig(mode).Normalize(), nil
}

type rawConfig struct {
	Mode     string `json:"mode"`
	Duration int    `json:"duration"`
	Interval int    `json:"interval"`
	Rounds   int    `json:"rounds"`
	Work     int    `json:"work"`
	Rest     int    `json:"rest"`
}

func decodeRaw(data []byte) (rawConfig, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return rawConfig{}, fmt.Errorf("decode timer config: %w", err)
	}
	return raw, nil
}

func (r rawConfig) toConfig(mode Mode) Config {
	c := Config{
		Mode:        mode,
		DurationSec: r.Duration,
		IntervalSec: r.Interval,
		Rounds:      r.Rounds,
		WorkSec:     r.Work,
		RestSec:     r.Rest,
	}
	// older remotes send the EMOM interval in "duration"
	if mode == ModeEMOM && c.IntervalSec == 0 {
		c.IntervalSec = r.Duration
	}
	return c
}

// Normalize returns a copy that carries only the parameters its mode needs
func (c Config) Normalize() Config {
	switch c.Mode {
	case ModeCountdown:
		return Config{Mode: ModeCountdown, DurationSec: c.DurationSec}
	case ModeEMOM:
		return Config{Mode: ModeEMOM, IntervalSec: c.IntervalSec, Rounds: c.Rounds}
	case ModeTabata:
		return Config{Mode: ModeTabata, WorkSec: c.WorkSec, RestSec: c.RestSec, Rounds: c.Rounds}
	default:
		return Stopwatch()
	}
}

// Validate checks the variant-specific parameters
func (c Config) Validate() error {
	switch c.Mode {
	case ModeStopwatch:
		return nil
	case ModeCountdown:
		if c.DurationSec <= 0 {
			return fmt.Errorf("%w: countdown duration must be positive, got %d", ErrInvalidConfig, c.DurationSec)
		}
	case ModeEMOM:
		if c.IntervalSec <= 0 {
			return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidConfig, c.IntervalSec)
		}
		if c.Rounds <= 0 {
			return fmt.Errorf("%w: rounds must be positive, got %d", ErrInvalidConfig, c.Rounds)
		}
	case ModeTabata:
		if c.WorkSec <= 0 || c.RestSec <= 0 {
			return fmt.Errorf("%w: work and rest must be positive, got %d/%d", ErrInvalidConfig, c.WorkSec, c.RestSec)
		}
		if c.Rounds <= 0 {
			return fmt.Errorf("%w: rounds must be positive, got %d", ErrInvalidConfig, c.Rounds)
		}
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrUnknownMode, c.Mode)
	}
	return nil
}
