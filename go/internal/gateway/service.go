package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gymhub/go/internal/events"
	"github.com/mcdev12/gymhub/go/internal/history"
	"github.com/mcdev12/gymhub/go/internal/roster"
	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/rs/zerolog/log"
)

// Service is the session authority: it owns the store and serves it over
// WebSocket and REST
type Service struct {
	store             *session.Store
	connectionManager *ConnectionManager
	dispatcher        *Dispatcher
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	health            *HealthChecker
	workoutConsumer   *WorkoutConsumer
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// Dependencies are the collaborators of the service. History, Roster and
// Publisher are required; the rest may be nil.
type Dependencies struct {
	Store     *session.Store
	History   history.Store
	Roster    *roster.Provider
	Publisher events.Publisher
	Clock     clockwork.Clock
	DB        Pinger
	NATS      ConnectedChecker
}

// NewService wires the gateway around deps.Store
func NewService(config Config, deps Dependencies) *Service {
	dispatcher := NewDispatcher(deps.Store, deps.History, deps.Publisher, deps.Clock)
	connectionManager := NewConnectionManager(config.ConnectionConfig, dispatcher)

	// fan-out runs under the store lock, which keeps broadcasts in store order
	deps.Store.Subscribe(connectionManager.BroadcastSnapshot)

	return &Service{
		store:             deps.Store,
		connectionManager: connectionManager,
		dispatcher:        dispatcher,
		wsHandler:         NewWebSocketHandler(connectionManager, deps.Store),
		stateHandler:      NewStateHandler(deps.Store, deps.History, deps.Roster, deps.Publisher, connectionManager, deps.Clock),
		health:            NewHealthChecker(deps.Store, connectionManager, deps.DB, deps.NATS),
	}
}

// Dispatcher exposes command execution for intake paths other than the socket
func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// AttachWorkoutConsumer makes Start run the JetStream intake as well
func (s *Service) AttachWorkoutConsumer(wc *WorkoutConsumer) {
	s.workoutConsumer = wc
	s.health.WatchConsumer(wc)
}

// Start runs the background loops until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting gymhub gateway service")

	go s.connectionManager.Start(ctx)

	if s.workoutConsumer != nil {
		go func() {
			if err := s.workoutConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("workout consumer failed")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("gymhub gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and REST routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	mux.Handle("/health", s.health)
	log.Info().Msg("gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
