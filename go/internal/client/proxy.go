// Package client is the client side of a session: it keeps a websocket to
// the authority open, adopts every snapshot it receives and advances a local
// one-second clock in between so displays can count without server ticks.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gymhub/go/internal/models"
	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/mcdev12/gymhub/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned by Send while there is no open connection
var ErrNotConnected = errors.New("not connected")

const (
	// DefaultReconnectWait is the fixed delay between connection attempts
	DefaultReconnectWait = 3 * time.Second
	// DefaultReadTimeout is how long a connection may stay silent. The
	// authority pings well within it.
	DefaultReadTimeout = 60 * time.Second
)

// State is the connection state of a Proxy
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// View is what a client renders: the last snapshot plus the locally
// advanced clock and whatever cues fired on this step
type View struct {
	Snapshot session.Snapshot
	Elapsed  int
	Display  timer.DisplayInfo
	Cues     []timer.Cue
}

// Config configures a Proxy. Only URL is required.
type Config struct {
	URL           string
	Role          string
	Participant   string
	ReconnectWait time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	Clock         clockwork.Clock
	Dialer        *websocket.Dialer

	OnState       func(State)
	OnView        func(View)
	OnNewLog      func(models.LogEntry)
	OnServerError func(message string)
}

// Proxy is one client's connection to the session
type Proxy struct {
	cfg      Config
	endpoint string

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	writeMu sync.Mutex
}

// NewProxy validates cfg and fills in defaults
func NewProxy(cfg Config) (*Proxy, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be ws or wss", cfg.URL)
	}
	q := u.Query()
	if cfg.Role != "" {
		q.Set("role", cfg.Role)
	}
	if cfg.Participant != "" {
		q.Set("participant", cfg.Participant)
	}
	u.RawQuery = q.Encode()

	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultReconnectWait
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}

	return &Proxy{
		cfg:      cfg,
		endpoint: u.String(),
		state:    StateDisconnected,
	}, nil
}

// State returns the current connection state
func (p *Proxy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Run connects and keeps reconnecting every ReconnectWait until ctx is
// cancelled. It always returns ctx.Err().
func (p *Proxy) Run(ctx context.Context) error {
	for {
		p.setState(StateConnecting)

		conn, _, err := p.cfg.Dialer.DialContext(ctx, p.endpoint, nil)
		if err != nil {
			log.Debug().Err(err).Str("url", p.endpoint).Msg("connection attempt failed")
		} else {
			p.serve(ctx, conn)
		}

		p.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.cfg.Clock.After(p.cfg.ReconnectWait):
		}
	}
}

// Send encodes cmd as an ACTION frame. It does not wait for the resulting
// snapshot.
func (p *Proxy) Send(cmd session.Command) error {
	data, err := session.EncodeAction(cmd)
	if err != nil {
		return err
	}

	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// serve owns one connection until it fails or ctx ends
func (p *Proxy) serve(ctx context.Context, conn *websocket.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	p.setState(StateConnected)

	defer func() {
		p.mu.Lock()
		p.conn = nil
		p.mu.Unlock()
		conn.Close()
	}()

	// unblock ReadMessage on cancellation
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	snapshots := make(chan snapshotUpdate, 16)
	clockDone := make(chan struct{})
	go func() {
		defer close(clockDone)
		p.runLocalClock(connCtx, snapshots)
	}()
	defer func() {
		cancel()
		<-clockDone
	}()

	// a half-open link shows up as a read timeout
	conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(p.cfg.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	first := true
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if connCtx.Err() == nil {
				log.Info().Err(err).Msg("connection to session lost")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout))

		env, err := session.DecodeEnvelope(data)
		if err != nil {
			log.Warn().Err(err).Msg("discarding malformed frame")
			continue
		}

		switch env.Type {
		case session.MessageTypeStateUpdate:
			var snap session.Snapshot
			if err := json.Unmarshal(env.Payload, &snap); err != nil {
				log.Warn().Err(err).Msg("discarding malformed snapshot")
				continue
			}
			select {
			case snapshots <- snapshotUpdate{snap: snap, fresh: first}:
				first = false
			case <-connCtx.Done():
				return
			}

		case session.MessageTypeNewLog:
			var entry models.LogEntry
			if err := json.Unmarshal(env.Payload, &entry); err != nil {
				log.Warn().Err(err).Msg("discarding malformed log entry")
				continue
			}
			if p.cfg.OnNewLog != nil {
				p.cfg.OnNewLog(entry)
			}

		case session.MessageTypeError:
			var payload session.ErrorPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				payload.Message = string(env.Payload)
			}
			log.Warn().Str("message", payload.Message).Msg("command rejected by session")
			if p.cfg.OnServerError != nil {
				p.cfg.OnServerError(payload.Message)
			}

		default:
			log.Debug().Str("type", string(env.Type)).Msg("ignoring unknown frame type")
		}
	}
}

type snapshotUpdate struct {
	snap session.Snapshot
	// first snapshot on a connection; accepted whatever its version, since
	// the authority may have restarted
	fresh bool
}

// runLocalClock adopts snapshots and advances elapsed once per second
// while the timer runs. Each second of a run is cued at most once: cuedTo
// is the last second whose cues were emitted.
func (p *Proxy) runLocalClock(ctx context.Context, snapshots <-chan snapshotUpdate) {
	var (
		current  session.Snapshot
		have     bool
		elapsed  int
		cuedTo   int
		ticker   clockwork.Ticker
		tickChan <-chan time.Time
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickChan = nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return

		case u := <-snapshots:
			if have && !u.fresh && u.snap.Version < current.Version {
				log.Debug().
					Uint64("version", u.snap.Version).
					Uint64("applied", current.Version).
					Msg("ignoring stale snapshot")
				continue
			}
			sameRun := have && current.TimerRunning && u.snap.TimerRunning &&
				u.snap.TimerConfig == current.TimerConfig
			current, have = u.snap, true
			elapsed = u.snap.ElapsedSeconds

			stopTicker()
			if current.TimerRunning {
				ticker = p.cfg.Clock.NewTicker(time.Second)
				tickChan = ticker.Chan()
			}

			var cues []timer.Cue
			switch {
			case !current.TimerRunning:
			case sameRun:
				// catch up on seconds the snapshot jumped over
				if elapsed > cuedTo {
					cues = cuesBetween(current.TimerConfig, cuedTo, elapsed)
					cuedTo = elapsed
				}
			default:
				cues = timer.CuesAt(current.TimerConfig, elapsed)
				cuedTo = elapsed
			}
			p.emit(current, elapsed, cues)

		case <-tickChan:
			elapsed++
			var cues []timer.Cue
			if elapsed > cuedTo {
				cues = timer.CuesAt(current.TimerConfig, elapsed)
				cuedTo = elapsed
			}
			p.emit(current, elapsed, cues)
		}
	}
}

// cuesBetween collects the cues of every second in (from, to], each kind
// once
func cuesBetween(c timer.Config, from, to int) []timer.Cue {
	var cues []timer.Cue
	seen := make(map[timer.Cue]bool)
	for e := from + 1; e <= to; e++ {
		for _, cue := range timer.CuesAt(c, e) {
			if !seen[cue] {
				seen[cue] = true
				cues = append(cues, cue)
			}
		}
	}
	return cues
}

func (p *Proxy) emit(snap session.Snapshot, elapsed int, cues []timer.Cue) {
	if p.cfg.OnView == nil {
		return
	}
	p.cfg.OnView(View{
		Snapshot: snap,
		Elapsed:  elapsed,
		Display:  timer.Derive(snap.TimerConfig, elapsed),
		Cues:     cues,
	})
}

func (p *Proxy) setState(s State) {
	p.mu.Lock()
	changed := p.state != s
	p.state = s
	p.mu.Unlock()

	if changed && p.cfg.OnState != nil {
		p.cfg.OnState(s)
	}
}
