package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// DBTX is satisfied by *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL used by the repository
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx binds the queries to a transaction
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id    TEXT PRIMARY KEY,
    name  TEXT NOT NULL,
    role  TEXT NOT NULL,
    color TEXT NOT NULL DEFAULT '',
    stats JSONB
);
CREATE TABLE IF NOT EXISTS workouts (
    id         TEXT PRIMARY KEY,
    date       TEXT NOT NULL,
    json_data  JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS logs (
    id         SERIAL PRIMARY KEY,
    user_id    TEXT NOT NULL,
    workout_id TEXT NOT NULL,
    exercise   TEXT NOT NULL,
    result     TEXT NOT NULL,
    feeling    TEXT,
    notes      TEXT,
    timestamp  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS logs_workout_id_idx ON logs (workout_id);
`

func (q *Queries) CreateSchema(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, schema)
	return err
}

type UserRow struct {
	ID    string
	Name  string
	Role  string
	Color string
	Stats pqtype.NullRawMessage
}

const upsertUser = `
INSERT INTO users (id, name, role, color, stats)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, role = EXCLUDED.role, color = EXCLUDED.color, stats = EXCLUDED.stats
`

func (q *Queries) UpsertUser(ctx context.Context, arg UserRow) error {
	_, err := q.db.ExecContext(ctx, upsertUser, arg.ID, arg.Name, arg.Role, arg.Color, arg.Stats)
	return err
}

const listUsers = `SELECT id, name, role, color, stats FROM users ORDER BY id`

func (q *Queries) ListUsers(ctx context.Context) ([]UserRow, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []UserRow
	for rows.Next() {
		var i UserRow
		if err := rows.Scan(&i.ID, &i.Name, &i.Role, &i.Color, &i.Stats); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type WorkoutRow struct {
	ID        string
	Date      string
	JSONData  pqtype.NullRawMessage
	CreatedAt time.Time
}

const insertWorkout = `
INSERT INTO workouts (id, date, json_data, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET json_data = EXCLUDED.json_data
`

func (q *Queries) InsertWorkout(ctx context.Context, arg WorkoutRow) error {
	_, err := q.db.ExecContext(ctx, insertWorkout, arg.ID, arg.Date, arg.JSONData, arg.CreatedAt)
	return err
}

const latestWorkout = `
SELECT id, date, json_data, created_at FROM workouts ORDER BY created_at DESC LIMIT 1
`

func (q *Queries) LatestWorkout(ctx context.Context) (WorkoutRow, error) {
	var i WorkoutRow
	err := q.db.QueryRowContext(ctx, latestWorkout).Scan(&i.ID, &i.Date, &i.JSONData, &i.CreatedAt)
	return i, err
}

const listWorkouts = `
SELECT id, date, json_data, created_at FROM workouts ORDER BY created_at DESC LIMIT $1
`

func (q *Queries) ListWorkouts(ctx context.Context, limit int32) ([]WorkoutRow, error) {
	rows, err := q.db.QueryContext(ctx, listWorkouts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []WorkoutRow
	for rows.Next() {
		var i WorkoutRow
		if err := rows.Scan(&i.ID, &i.Date, &i.JSONData, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type LogRow struct {
	UserID    string
	WorkoutID string
	Exercise  string
	Result    string
	Feeling   sql.NullString
	Notes     sql.NullString
	Timestamp time.Time
}

const insertLog = `
INSERT INTO logs (user_id, workout_id, exercise, result, feeling, notes, timestamp)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (q *Queries) InsertLog(ctx context.Context, arg LogRow) error {
	_, err := q.db.ExecContext(ctx, insertLog,
		arg.UserID, arg.WorkoutID, arg.Exercise, arg.Result, arg.Feeling, arg.Notes, arg.Timestamp)
	return err
}

const listLogsForWorkouts = `
SELECT user_id, workout_id, exercise, result, feeling, notes, timestamp
FROM logs WHERE workout_id = ANY($1) ORDER BY timestamp
`

func (q *Queries) ListLogsForWorkouts(ctx context.Context, workoutIDs []string) ([]LogRow, error) {
	rows, err := q.db.QueryContext(ctx, listLogsForWorkouts, pq.Array(workoutIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LogRow
	for rows.Next() {
		var i LogRow
		if err := rows.Scan(&i.UserID, &i.WorkoutID, &i.Exercise, &i.Result, &i.Feeling, &i.Notes, &i.Timestamp); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
