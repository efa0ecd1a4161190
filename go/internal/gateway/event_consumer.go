package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/gymhub/go/internal/events"
	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/mcdev12/gymhub/go/internal/timer"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConsumerConfig holds configuration for the workout intake consumer
type JetStreamConsumerConfig struct {
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
}

// DefaultJetStreamConsumerConfig returns default JetStream consumer configuration
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		StreamName:    events.DefaultJetStreamConfig().StreamName,
		ConsumerName:  "gymhub-gateway-workouts",
		SubjectFilter: events.WorkoutSubjectPrefix + ".>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 10,
	}
}

// errPoisonMessage marks messages that will never apply, however often
// they are redelivered
var errPoisonMessage = errors.New("poison message")

// commandExecutor is the part of Dispatcher the consumer needs
type commandExecutor interface {
	Execute(ctx context.Context, cmd session.Command, actor string) (session.Snapshot, error)
}

// WorkoutConsumer applies workouts published by the content provider as
// SET_WORKOUT commands
type WorkoutConsumer struct {
	executor commandExecutor
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   JetStreamConsumerConfig
}

// NewWorkoutConsumer creates the durable consumer on an existing connection
func NewWorkoutConsumer(ctx context.Context, nc *nats.Conn, executor commandExecutor, config JetStreamConsumerConfig) (*WorkoutConsumer, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	wc := &WorkoutConsumer{
		executor: executor,
		js:       js,
		config:   config,
	}
	if err := wc.ensureConsumer(ctx); err != nil {
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return wc, nil
}

// ensureConsumer creates or gets the JetStream consumer
func (wc *WorkoutConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := wc.js.Stream(ctx, wc.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          wc.config.ConsumerName,
		Durable:       wc.config.ConsumerName,
		Description:   "GymHub gateway workout intake",
		FilterSubject: wc.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    wc.config.MaxDeliver,
		AckWait:       wc.config.AckWait,
		MaxAckPending: wc.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", wc.config.ConsumerName).
		Str("stream", wc.config.StreamName).
		Str("filter", wc.config.SubjectFilter).
		Msg("JetStream workout consumer ready")

	wc.consumer = consumer
	return nil
}

// Start consumes until ctx is cancelled
func (wc *WorkoutConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", wc.config.ConsumerName).
		Msg("starting JetStream workout consumer")

	messageCh := make(chan jetstream.Msg, 16)
	consumeCtx, err := wc.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("workout consumer shutting down")
			return nil
		case msg := <-messageCh:
			wc.settle(msg, wc.handleWorkoutMessage(ctx, msg.Subject(), msg.Data()))
		}
	}
}

func (wc *WorkoutConsumer) settle(msg jetstream.Msg, err error) {
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	case errors.Is(err, errPoisonMessage):
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping workout message")
		if termErr := msg.Term(); termErr != nil {
			log.Error().Err(termErr).Msg("failed to TERM message")
		}
	default:
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process workout message")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error().Err(nakErr).Msg("failed to NAK message")
		}
	}
}

// handleWorkoutMessage decodes a workout plan and loads it into the session
func (wc *WorkoutConsumer) handleWorkoutMessage(ctx context.Context, subject string, data []byte) error {
	workout, err := session.DecodeWorkout(data)
	if err != nil {
		return fmt.Errorf("%w: %w", errPoisonMessage, err)
	}

	snap, err := wc.executor.Execute(ctx, session.SetWorkout{Workout: workout}, "provider:"+subject)
	if err != nil {
		if errors.Is(err, session.ErrMalformedCommand) || errors.Is(err, timer.ErrInvalidConfig) {
			return fmt.Errorf("%w: %w", errPoisonMessage, err)
		}
		return err
	}

	log.Info().
		Str("subject", subject).
		Str("workout_id", snap.Workout.ID).
		Int("parts", len(snap.Workout.Parts)).
		Msg("workout loaded from provider")
	return nil
}

// GetConsumerInfo returns information about the consumer
func (wc *WorkoutConsumer) GetConsumerInfo(ctx context.Context) (*jetstream.ConsumerInfo, error) {
	return wc.consumer.Info(ctx)
}
