package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gymhub/go/internal/events"
	"github.com/mcdev12/gymhub/go/internal/history"
	"github.com/mcdev12/gymhub/go/internal/models"
	"github.com/mcdev12/gymhub/go/internal/roster"
	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/rs/zerolog/log"
)

const historyLimit = 20

// StateHandler serves the REST side of the session: state sync, roster,
// workout history and result logging.
type StateHandler struct {
	store     *session.Store
	history   history.Store
	roster    *roster.Provider
	publisher events.Publisher
	cm        *ConnectionManager
	clock     clockwork.Clock
}

// NewStateHandler creates a new state handler
func NewStateHandler(store *session.Store, hist history.Store, rosterProvider *roster.Provider, publisher events.Publisher, cm *ConnectionManager, clock clockwork.Clock) *StateHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if publisher == nil {
		publisher = events.NewLogPublisher()
	}
	return &StateHandler{
		store:     store,
		history:   hist,
		roster:    rosterProvider,
		publisher: publisher,
		cm:        cm,
		clock:     clock,
	}
}

// HandleGetState handles GET /api/state
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.store.Current())
}

// HandleGetUsers handles GET /users
func (h *StateHandler) HandleGetUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.roster.Participants(r.Context()))
}

// HandleGetCurrentWorkout handles GET /workout/current. It prefers the
// last persisted workout and falls back to what the session holds.
func (h *StateHandler) HandleGetCurrentWorkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	workout, err := h.history.LatestWorkout(r.Context())
	if err != nil && !errors.Is(err, history.ErrNotFound) {
		log.Error().Err(err).Msg("failed to load latest workout")
	}
	if workout == nil {
		workout = h.store.Current().Workout
	}
	if workout == nil {
		workout = &models.Workout{Parts: []models.Segment{}}
	}
	writeJSON(w, http.StatusOK, workout)
}

// HandleGetHistory handles GET /history
func (h *StateHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := h.history.ListWorkouts(r.Context(), historyLimit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list workout history")
		records = []models.WorkoutRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type logStatusResponse struct {
	Status string `json:"status"`
}

// HandlePostLog handles POST /log. The entry is stored, published and
// broadcast as NEW_LOG; storage and publish failures are only logged.
func (h *StateHandler) HandlePostLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var entry models.LogEntry
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "Invalid log entry", http.StatusBadRequest)
		return
	}
	if msg := validateLogEntry(entry); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	entry.LoggedAt = h.clock.Now()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.history.InsertLog(ctx, entry); err != nil {
		log.Error().Err(err).Str("user_id", entry.UserID).Msg("failed to store log entry")
	}

	if event, err := events.NewLogResultEvent(entry, entry.LoggedAt); err != nil {
		log.Error().Err(err).Msg("failed to build log result event")
	} else if err := h.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to publish log result event")
	}

	if err := h.cm.Broadcast(session.MessageTypeNewLog, entry); err != nil {
		log.Error().Err(err).Msg("failed to broadcast new log")
	}

	log.Info().
		Str("user_id", entry.UserID).
		Str("workout_id", entry.WorkoutID).
		Str("exercise", entry.Exercise).
		Msg("result logged")

	writeJSON(w, http.StatusOK, logStatusResponse{Status: "ok"})
}

func validateLogEntry(e models.LogEntry) string {
	switch {
	case strings.TrimSpace(e.UserID) == "":
		return "user_id is required"
	case strings.TrimSpace(e.WorkoutID) == "":
		return "workout_id is required"
	case strings.TrimSpace(e.Exercise) == "":
		return "exercise is required"
	case strings.TrimSpace(e.Result) == "":
		return "result is required"
	}
	return ""
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", h.HandleGetState)
	mux.HandleFunc("/users", h.HandleGetUsers)
	mux.HandleFunc("/workout/current", h.HandleGetCurrentWorkout)
	mux.HandleFunc("/history", h.HandleGetHistory)
	mux.HandleFunc("/log", h.HandlePostLog)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
