// Package timer derives everything a client displays from a timer config
// and a whole-second elapsed count. Every function here is pure: the same
// (config, elapsed) pair always yields the same display and the same cues,
// which is what lets each client advance its own clock between snapshots.
package timer

import "fmt"

// Phase is the Tabata work/rest indicator
type Phase string

const (
	PhaseNone Phase = ""
	PhaseWork Phase = "WORK"
	PhaseRest Phase = "REST"
)

// Cue is a momentary feedback signal, never persisted
type Cue string

const (
	CueWarn     Cue = "WARN"
	CueBoundary Cue = "BOUNDARY"
)

// warnWindow is how many seconds before a boundary the Warn cue fires
const warnWindow = 3

// DisplayInfo is the derived view of a timer at one elapsed second
type DisplayInfo struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
	Phase     Phase  `json:"phase,omitempty"`
	// Round is 1-based; zero for modes without rounds
	Round int `json:"round,omitempty"`
	// Remaining is the seconds left in the current countdown, round or phase
	Remaining int  `json:"remaining"`
	Done      bool `json:"done"`
}

// FormatClock renders seconds as MM:SS. Minutes are not capped at 99.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Derive computes the display for config at elapsed seconds
func Derive(c Config, elapsed int) DisplayInfo {
	if elapsed < 0 {
		elapsed = 0
	}

	switch c.Mode {
	case ModeCountdown:
		remaining := c.DurationSec - elapsed
		if remaining < 0 {
			remaining = 0
		}
		return DisplayInfo{
			Primary:   FormatClock(remaining),
			Remaining: remaining,
			Done:      remaining == 0,
		}

	case ModeEMOM:
		if c.IntervalSec <= 0 {
			return done(c.Rounds)
		}
		round := elapsed/c.IntervalSec + 1
		if round > c.Rounds {
			return done(c.Rounds)
		}
		remaining := c.IntervalSec - elapsed%c.IntervalSec
		return DisplayInfo{
			Primary:   FormatClock(remaining),
			Secondary: fmt.Sprintf("Round %d/%d", round, c.Rounds),
			Round:     round,
			Remaining: remaining,
		}

	case ModeTabata:
		cycle := c.WorkSec + c.RestSec
		if c.WorkSec <= 0 || cycle <= 0 {
			return done(c.Rounds)
		}
		round := elapsed/cycle + 1
		if round > c.Rounds {
			return done(c.Rounds)
		}
		inCycle := elapsed % cycle
		phase := PhaseRest
		remaining := cycle - inCycle
		if inCycle < c.WorkSec {
			phase = PhaseWork
			remaining = c.WorkSec - inCycle
		}
		return DisplayInfo{
			Primary:   FormatClock(remaining),
			Secondary: fmt.Sprintf("%s %d/%d", phase, round, c.Rounds),
			Phase:     phase,
			Round:     round,
			Remaining: remaining,
		}

	default:
		return DisplayInfo{
			Primary:   FormatClock(elapsed),
			Remaining: 0,
		}
	}
}

func done(rounds int) DisplayInfo {
	return DisplayInfo{
		Primary:   "DONE",
		Secondary: "Finished",
		Round:     rounds,
		Done:      true,
	}
}

// CuesAt returns the cues crossed when the clock reaches elapsed. A client
// calls it once per second as its local clock advances, which makes every
// cue edge-triggered.
func CuesAt(c Config, elapsed int) []Cue {
	if elapsed < 0 {
		return nil
	}

	switch c.Mode {
	case ModeCountdown:
		remaining := c.DurationSec - elapsed
		switch {
		case remaining == 0:
			return []Cue{CueBoundary}
		case remaining > 0 && remaining <= warnWindow:
			return []Cue{CueWarn}
		}

	case ModeEMOM:
		if c.IntervalSec <= 0 || elapsed/c.IntervalSec+1 > c.Rounds {
			return nil
		}
		inRound := elapsed % c.IntervalSec
		// inRound == 0 also holds at elapsed 0: the first round starting
		if inRound == 0 {
			return []Cue{CueBoundary}
		}
		if c.IntervalSec-inRound <= warnWindow {
			return []Cue{CueWarn}
		}

	case ModeTabata:
		cycle := c.WorkSec + c.RestSec
		if c.WorkSec <= 0 || cycle <= 0 || elapsed/cycle+1 > c.Rounds {
			return nil
		}
		inCycle := elapsed % cycle
		if inCycle == 0 || inCycle == c.WorkSec {
			return []Cue{CueBoundary}
		}
		if inWarnWindow(inCycle, c.WorkSec) || inWarnWindow(inCycle, cycle) {
			return []Cue{CueWarn}
		}
	}

	return nil
}

// inWarnWindow reports whether t lies in the seconds just before boundary
func inWarnWindow(t, boundary int) bool {
	return t >= boundary-warnWindow && t < boundary
}
