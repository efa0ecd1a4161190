package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gymhub/go/internal/dbconfig"
	"github.com/mcdev12/gymhub/go/internal/events"
	"github.com/mcdev12/gymhub/go/internal/gateway"
	"github.com/mcdev12/gymhub/go/internal/history"
	"github.com/mcdev12/gymhub/go/internal/roster"
	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(logLevel())

	port := getEnvAsInt("GATEWAY_PORT", 8000)
	natsURL := os.Getenv("NATS_URL")
	rosterFile := os.Getenv("ROSTER_FILE")
	dbCfg := dbconfig.NewConfigFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	store := session.NewStore(session.WithClock(clock))

	deps := gateway.Dependencies{
		Store:  store,
		Clock:  clock,
		Roster: roster.NewProvider(roster.File{Path: rosterFile}),
	}

	// History: Postgres when configured, otherwise in process
	var repo *history.Repository
	if dbCfg.Enabled() {
		var err error
		repo, err = history.Open(ctx, dbCfg, clock)
		if err != nil {
			log.Error().Err(err).Msg("database unavailable, keeping history in memory")
		}
	}
	if repo != nil {
		defer repo.Close()
		seedRoster(ctx, repo, rosterFile)
		deps.History = repo
		deps.DB = repo
		deps.Roster = roster.NewProvider(repo, roster.File{Path: rosterFile})
	} else {
		deps.History = history.NewMemoryStore(clock)
	}

	// Event bus: JetStream when configured, otherwise log only
	var nc *nats.Conn
	deps.Publisher = events.NewLogPublisher()
	if natsURL != "" {
		jsCfg := events.DefaultJetStreamConfig()
		jsCfg.URL = natsURL

		var err error
		nc, err = events.Connect(jsCfg)
		if err != nil {
			log.Error().Err(err).Str("nats_url", natsURL).Msg("NATS unavailable, events will only be logged")
		} else {
			defer nc.Close()
			publisher, err := events.NewJetStreamPublisher(nc, jsCfg)
			if err != nil {
				log.Error().Err(err).Msg("failed to create JetStream publisher")
			} else {
				deps.Publisher = publisher
				deps.NATS = publisher
			}
		}
	}

	gatewayConfig := gateway.DefaultConfig()
	svc := gateway.NewService(gatewayConfig, deps)

	if nc != nil && deps.NATS != nil {
		wc, err := gateway.NewWorkoutConsumer(ctx, nc, svc.Dispatcher(), gatewayConfig.JetStreamConfig)
		if err != nil {
			log.Error().Err(err).Msg("failed to create workout consumer")
		} else {
			svc.AttachWorkoutConsumer(wc)
		}
	}

	restoreLatestWorkout(ctx, store, deps.History)

	server := setupServer(port, svc)

	log.Info().
		Int("port", port).
		Bool("database", repo != nil).
		Bool("nats", deps.NATS != nil).
		Msg("starting gymhub gateway")

	go func() {
		if err := svc.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	log.Info().Msg("gymhub gateway shutdown complete")
}

// seedRoster fills an empty users table from the roster file or the
// built-in roster
func seedRoster(ctx context.Context, repo *history.Repository, rosterFile string) {
	existing, err := repo.Participants(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read roster from database")
		return
	}
	if len(existing) > 0 {
		return
	}
	participants := roster.NewProvider(roster.File{Path: rosterFile}).Participants(ctx)
	if err := repo.SeedUsers(ctx, participants); err != nil {
		log.Error().Err(err).Msg("failed to seed roster")
	}
}

// restoreLatestWorkout puts the last persisted workout back on the display
func restoreLatestWorkout(ctx context.Context, store *session.Store, hist history.Store) {
	workout, err := hist.LatestWorkout(ctx)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			log.Error().Err(err).Msg("failed to load latest workout")
		}
		return
	}
	if _, err := store.Apply(ctx, session.SetWorkout{Workout: workout}, "startup"); err != nil {
		log.Error().Err(err).Str("workout_id", workout.ID).Msg("failed to restore latest workout")
	}
}
