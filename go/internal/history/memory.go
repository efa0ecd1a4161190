package history

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gymhub/go/internal/models"
)

// MemoryStore keeps history in process. It is used when no database is
// configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	workouts map[string]models.WorkoutRecord
	logs     []models.LogEntry
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock:    clock,
		workouts: make(map[string]models.WorkoutRecord),
	}
}

func (m *MemoryStore) SaveWorkout(ctx context.Context, w *models.Workout) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w == nil || w.ID == "" {
		return ErrMissingID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.workouts[w.ID]
	if !ok {
		now := m.clock.Now()
		rec = models.WorkoutRecord{ID: w.ID, Date: now.Format("2006-01-02"), CreatedAt: now}
	}
	rec.Plan = w.Clone()
	m.workouts[w.ID] = rec
	return nil
}

func (m *MemoryStore) LatestWorkout(ctx context.Context) (*models.Workout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.sortedLocked()
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0].Plan.Clone(), nil
}

func (m *MemoryStore) ListWorkouts(ctx context.Context, limit int) ([]models.WorkoutRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.sortedLocked()
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]models.WorkoutRecord, 0, len(recs))
	for _, rec := range recs {
		rec.Plan = rec.Plan.Clone()
		rec.Logs = []models.LogEntry{}
		for _, l := range m.logs {
			if l.WorkoutID == rec.ID {
				rec.Logs = append(rec.Logs, l)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *MemoryStore) InsertLog(ctx context.Context, entry models.LogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = m.clock.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

// newest first, ties broken by id so the order is stable
func (m *MemoryStore) sortedLocked() []models.WorkoutRecord {
	recs := make([]models.WorkoutRecord, 0, len(m.workouts))
	for _, rec := range m.workouts {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
	return recs
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*Repository)(nil)
)
