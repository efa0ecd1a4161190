package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogPublisher only logs events. It is used when no NATS URL is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	log.Debug().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Int("size", len(event.Payload)).
		Msg("event bus disabled, dropping event")
	return nil
}
