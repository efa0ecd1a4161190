// Package history persists loaded workouts, logged results and the roster.
// It is a side channel of the session: nothing here is read while a command
// is being applied.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gymhub/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

var (
	// ErrNotFound is returned when no workout has been persisted yet
	ErrNotFound  = errors.New("not found")
	ErrMissingID = errors.New("workout must have an id")
)

// Store is what the gateway needs from a history backend
type Store interface {
	SaveWorkout(ctx context.Context, w *models.Workout) error
	LatestWorkout(ctx context.Context) (*models.Workout, error)
	ListWorkouts(ctx context.Context, limit int) ([]models.WorkoutRecord, error)
	InsertLog(ctx context.Context, entry models.LogEntry) error
}

// Repository is the Postgres implementation of Store
type Repository struct {
	db      *sql.DB
	queries *Queries
	clock   clockwork.Clock
}

// NewRepository uses the real clock when clock is nil
func NewRepository(db *sql.DB, clock clockwork.Clock) *Repository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Repository{
		db:      db,
		queries: New(db),
		clock:   clock,
	}
}

// EnsureSchema creates the tables if they do not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if err := r.queries.CreateSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SeedUsers upserts participants in one transaction
func (r *Repository) SeedUsers(ctx context.Context, participants []models.Participant) error {
	err := runInTx(ctx, r.db, r.queries, func(q *Queries) error {
		for _, p := range participants {
			if err := q.UpsertUser(ctx, UserRow{
				ID:    p.ID,
				Name:  p.DisplayName,
				Role:  string(p.Role),
				Color: p.ColorTag,
			}); err != nil {
				return fmt.Errorf("upsert user %s: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	log.Info().Int("users", len(participants)).Msg("roster seeded")
	return nil
}

// Participants implements roster.Source
func (r *Repository) Participants(ctx context.Context) ([]models.Participant, error) {
	rows, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	participants := make([]models.Participant, 0, len(rows))
	for _, row := range rows {
		participants = append(participants, models.Participant{
			ID:          row.ID,
			DisplayName: row.Name,
			Role:        models.ParseParticipantRole(row.Role),
			ColorTag:    row.Color,
		})
	}
	return participants, nil
}

func (r *Repository) SaveWorkout(ctx context.Context, w *models.Workout) error {
	if w == nil || w.ID == "" {
		return ErrMissingID
	}
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal workout: %w", err)
	}

	now := r.clock.Now()
	err = r.queries.InsertWorkout(ctx, WorkoutRow{
		ID:        w.ID,
		Date:      now.Format("2006-01-02"),
		JSONData:  pqtype.NullRawMessage{RawMessage: data, Valid: true},
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to insert workout: %w", err)
	}
	return nil
}

func (r *Repository) LatestWorkout(ctx context.Context) (*models.Workout, error) {
	row, err := r.queries.LatestWorkout(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest workout: %w", err)
	}
	return decodePlan(row)
}

func (r *Repository) ListWorkouts(ctx context.Context, limit int) ([]models.WorkoutRecord, error) {
	rows, err := r.queries.ListWorkouts(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list workouts: %w", err)
	}
	if len(rows) == 0 {
		return []models.WorkoutRecord{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	logRows, err := r.queries.ListLogsForWorkouts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	logsByWorkout := make(map[string][]models.LogEntry)
	for _, l := range logRows {
		logsByWorkout[l.WorkoutID] = append(logsByWorkout[l.WorkoutID], logRowToModel(l))
	}

	records := make([]models.WorkoutRecord, 0, len(rows))
	for _, row := range rows {
		plan, err := decodePlan(row)
		if err != nil {
			// an unreadable plan should not hide the rest of the history
			log.Warn().Err(err).Str("workout_id", row.ID).Msg("skipping undecodable workout plan")
			plan = &models.Workout{ID: row.ID}
		}
		logs := logsByWorkout[row.ID]
		if logs == nil {
			logs = []models.LogEntry{}
		}
		records = append(records, models.WorkoutRecord{
			ID:        row.ID,
			Date:      row.Date,
			Plan:      plan,
			CreatedAt: row.CreatedAt,
			Logs:      logs,
		})
	}
	return records, nil
}

func (r *Repository) InsertLog(ctx context.Context, entry models.LogEntry) error {
	ts := entry.LoggedAt
	if ts.IsZero() {
		ts = r.clock.Now()
	}
	err := r.queries.InsertLog(ctx, LogRow{
		UserID:    entry.UserID,
		WorkoutID: entry.WorkoutID,
		Exercise:  entry.Exercise,
		Result:    entry.Result,
		Feeling:   sql.NullString{String: entry.Feeling, Valid: entry.Feeling != ""},
		Notes:     sql.NullString{String: entry.Notes, Valid: entry.Notes != ""},
		Timestamp: ts,
	})
	if err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func decodePlan(row WorkoutRow) (*models.Workout, error) {
	if !row.JSONData.Valid {
		return &models.Workout{ID: row.ID, Parts: []models.Segment{}}, nil
	}
	var w models.Workout
	if err := json.Unmarshal(row.JSONData.RawMessage, &w); err != nil {
		return nil, fmt.Errorf("failed to decode workout %s: %w", row.ID, err)
	}
	if w.ID == "" {
		w.ID = row.ID
	}
	return &w, nil
}

func logRowToModel(l LogRow) models.LogEntry {
	return models.LogEntry{
		UserID:    l.UserID,
		WorkoutID: l.WorkoutID,
		Exercise:  l.Exercise,
		Result:    l.Result,
		Feeling:   l.Feeling.String,
		Notes:     l.Notes.String,
		LoggedAt:  l.Timestamp,
	}
}

// runInTx executes fn inside a transaction bound to q.
// If fn returns an error the tx rolls back, else it commits.
func runInTx(ctx context.Context, db *sql.DB, q *Queries, fn func(*Queries) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(q.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
