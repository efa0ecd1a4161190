// Package session owns the authoritative workout session. All mutation goes
// through Store.Apply, which serializes commands and hands every resulting
// snapshot to the subscribers in the order it was produced.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gymhub/go/internal/models"
	"github.com/mcdev12/gymhub/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// Snapshot is an immutable full copy of the session as sent to clients
type Snapshot struct {
	Version         uint64          `json:"version"`
	TimerRunning    bool            `json:"timerRunning"`
	ElapsedSeconds  int             `json:"timerVal"`
	TimerConfig     timer.Config    `json:"timerConfig"`
	ActivePartIndex int             `json:"activePartIndex"`
	Rounds          map[string]int  `json:"rounds"`
	Workout         *models.Workout `json:"workout"`
}

// Subscriber receives every snapshot produced by Apply. It is called with
// the store lock held, so it must not block or call back into the store.
type Subscriber func(Snapshot)

// Store is the single writer of session state
type Store struct {
	mu    sync.Mutex
	clock clockwork.Clock

	running    bool
	baseline   int
	startedAt  time.Time
	config     timer.Config
	rounds     map[string]int
	activePart int
	workout    *models.Workout
	version    uint64

	subscribers []Subscriber
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the real clock, for tests
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// NewStore creates an empty session with a stopwatch timer
func NewStore(opts ...Option) *Store {
	s := &Store{
		clock:  clockwork.NewRealClock(),
		config: timer.Stopwatch(),
		rounds: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for all future snapshots
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Current returns the present state without changing it
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Attach calls fn with the current snapshot while holding the lock, so no
// snapshot produced by Apply can be delivered to subscribers in between.
// Used to register a new listener and hand it its first snapshot.
func (s *Store) Attach(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snapshotLocked())
}

// Apply validates cmd and, on success, commits it as a new snapshot.
// A rejected command leaves the session untouched and is not broadcast.
func (s *Store) Apply(ctx context.Context, cmd Command, actor string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if cmd == nil {
		return Snapshot{}, fmt.Errorf("%w: nil command", ErrMalformedCommand)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyLocked(cmd); err != nil {
		log.Debug().
			Err(err).
			Str("action", string(cmd.Action())).
			Str("actor", actor).
			Msg("command rejected")
		return Snapshot{}, err
	}

	s.version++
	snap := s.snapshotLocked()

	log.Info().
		Str("action", string(cmd.Action())).
		Str("actor", actor).
		Uint64("version", snap.Version).
		Bool("timer_running", snap.TimerRunning).
		Int("elapsed", snap.ElapsedSeconds).
		Msg("command applied")

	for _, sub := range s.subscribers {
		sub(snap)
	}
	return snap, nil
}

func (s *Store) applyLocked(cmd Command) error {
	switch c := cmd.(type) {
	case StartStopTimer:
		if s.running {
			s.baseline = s.elapsedLocked()
			s.running = false
		} else {
			s.startedAt = s.clock.Now()
			s.running = true
		}

	case AddRound:
		name := strings.TrimSpace(c.Participant)
		if name == "" {
			return fmt.Errorf("%w: empty participant", ErrMalformedCommand)
		}
		s.rounds[name]++

	case SetActivePart:
		if s.workout == nil || len(s.workout.Parts) == 0 {
			return nil
		}
		idx := clamp(c.Index, 0, s.workout.LastPartIndex())
		s.activePart = idx
		if cfg, ok := segmentCountdown(s.workout.Parts[idx]); ok {
			s.configureLocked(cfg)
		}

	case SetWorkout:
		if c.Workout == nil {
			return fmt.Errorf("%w: nil workout", ErrMalformedCommand)
		}
		cfg := timer.Stopwatch()
		if c.Workout.Timer != nil {
			cfg = c.Workout.Timer.Normalize()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("workout timer: %w", err)
			}
		}
		w := c.Workout.Clone()
		if w.ID == "" {
			w.ID = "wod_" + s.clock.Now().Format("20060102150405")
		}
		s.workout = w
		s.activePart = 0
		s.configureLocked(cfg)

	case ConfigureTimer:
		cfg := c.Config.Normalize()
		mode := c.Config.Mode
		if mode == "" {
			mode = timer.ModeStopwatch
		}
		if mode != cfg.Mode {
			return fmt.Errorf("%w: %w: %q", timer.ErrInvalidConfig, timer.ErrUnknownMode, c.Config.Mode)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.configureLocked(cfg)

	case ResetTimer:
		s.stopAndZeroLocked()
		s.rounds = make(map[string]int)

	case ResetRounds:
		s.rounds = make(map[string]int)

	default:
		return fmt.Errorf("%w: unsupported command %T", ErrMalformedCommand, cmd)
	}
	return nil
}

func (s *Store) configureLocked(cfg timer.Config) {
	s.config = cfg
	s.stopAndZeroLocked()
}

func (s *Store) stopAndZeroLocked() {
	s.running = false
	s.baseline = 0
	s.startedAt = time.Time{}
}

// elapsedLocked is the baseline plus whole seconds since the last start.
// The store never ticks; it only reads the clock when asked.
func (s *Store) elapsedLocked() int {
	if !s.running {
		return s.baseline
	}
	run := int(s.clock.Since(s.startedAt) / time.Second)
	if run < 0 {
		run = 0
	}
	return s.baseline + run
}

func (s *Store) snapshotLocked() Snapshot {
	rounds := make(map[string]int, len(s.rounds))
	for k, v := range s.rounds {
		rounds[k] = v
	}
	return Snapshot{
		Version:         s.version,
		TimerRunning:    s.running,
		ElapsedSeconds:  s.elapsedLocked(),
		TimerConfig:     s.config,
		ActivePartIndex: s.activePart,
		Rounds:          rounds,
		Workout:         s.workout.Clone(),
	}
}

// maxSegmentMinutes bounds the countdown derived from a segment duration
const maxSegmentMinutes = 24 * 60

// segmentCountdown derives the countdown a segment asks for. A missing,
// out-of-range or too short duration leaves the timer alone.
func segmentCountdown(seg models.Segment) (timer.Config, bool) {
	d := seg.DurationMin
	if d == nil || !(*d > 0) || *d > maxSegmentMinutes {
		return timer.Config{}, false
	}
	cfg := timer.Countdown(int(*d * 60))
	if err := cfg.Validate(); err != nil {
		log.Debug().Err(err).Float64("duration_min", *d).Msg("ignoring segment duration")
		return timer.Config{}, false
	}
	return cfg, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
