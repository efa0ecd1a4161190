package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gymhub/go/internal/events"
	"github.com/mcdev12/gymhub/go/internal/history"
	"github.com/mcdev12/gymhub/go/internal/models"
	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/rs/zerolog/log"
)

// Dispatcher turns inbound frames into store commands and runs the side
// effects of a successful command once the store lock is released.
type Dispatcher struct {
	store     *session.Store
	history   history.Store
	publisher events.Publisher
	clock     clockwork.Clock

	sideEffectTimeout time.Duration
}

func NewDispatcher(store *session.Store, hist history.Store, publisher events.Publisher, clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if publisher == nil {
		publisher = events.NewLogPublisher()
	}
	return &Dispatcher{
		store:             store,
		history:           hist,
		publisher:         publisher,
		clock:             clock,
		sideEffectTimeout: 5 * time.Second,
	}
}

// HandleMessage implements MessageHandler. Anything that fails to decode or
// apply is answered with an ERROR to the sender only.
func (d *Dispatcher) HandleMessage(ctx context.Context, conn *Connection, message []byte) {
	env, err := session.DecodeEnvelope(message)
	if err != nil {
		d.reject(conn, err)
		return
	}
	if env.Type != session.MessageTypeAction {
		log.Debug().
			Str("connection_id", conn.ID).
			Str("type", string(env.Type)).
			Msg("ignoring non-action message")
		d.reject(conn, errors.New("unsupported message type: "+string(env.Type)))
		return
	}

	cmd, err := session.DecodeCommand(env.Payload)
	if err != nil {
		d.reject(conn, err)
		return
	}

	actor := conn.Participant
	if actor == "" {
		actor = string(conn.Role)
	}
	if _, err := d.Execute(ctx, cmd, actor); err != nil {
		d.reject(conn, err)
	}
}

// Execute applies cmd and, for a new workout, records it in history and
// announces it on the bus.
func (d *Dispatcher) Execute(ctx context.Context, cmd session.Command, actor string) (session.Snapshot, error) {
	snap, err := d.store.Apply(ctx, cmd, actor)
	if err != nil {
		return session.Snapshot{}, err
	}
	if _, ok := cmd.(session.SetWorkout); ok && snap.Workout != nil {
		d.recordWorkout(snap.Workout)
	}
	return snap, nil
}

func (d *Dispatcher) recordWorkout(w *models.Workout) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sideEffectTimeout)
	defer cancel()

	if d.history != nil {
		if err := d.history.SaveWorkout(ctx, w); err != nil {
			log.Error().Err(err).Str("workout_id", w.ID).Msg("failed to save workout to history")
		}
	}

	event, err := events.NewWorkoutLoadedEvent(w, d.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to build workout loaded event")
		return
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("workout_id", w.ID).Msg("failed to publish workout loaded event")
	}
}

func (d *Dispatcher) reject(conn *Connection, cause error) {
	log.Debug().
		Err(cause).
		Str("connection_id", conn.ID).
		Msg("rejecting client message")
	if err := conn.Manager.SendTo(conn, session.MessageTypeError, session.ErrorPayload{Message: cause.Error()}); err != nil {
		log.Warn().Err(err).Str("connection_id", conn.ID).Msg("failed to send error reply")
	}
}
