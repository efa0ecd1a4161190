package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gymhub/go/internal/dbconfig"
	"github.com/rs/zerolog/log"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// Open connects to Postgres with the configured driver and makes sure the
// schema exists.
func Open(ctx context.Context, cfg dbconfig.Config, clock clockwork.Clock) (*Repository, error) {
	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := NewRepository(db, clock)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().
		Str("driver", cfg.DriverName()).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")
	return repo, nil
}

// Close releases the connection pool
func (r *Repository) Close() error {
	return r.db.Close()
}
