package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/nats-io/nats.go/jetstream"
)

// Pinger is satisfied by history.Repository
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectedChecker is satisfied by events.JetStreamPublisher
type ConnectedChecker interface {
	Connected() bool
}

// ConsumerInfoSource is satisfied by WorkoutConsumer
type ConsumerInfoSource interface {
	GetConsumerInfo(ctx context.Context) (*jetstream.ConsumerInfo, error)
}

// ConsumerHealth is the backlog of the workout intake consumer
type ConsumerHealth struct {
	Name        string `json:"name"`
	Pending     uint64 `json:"pending"`
	AckPending  int    `json:"ack_pending"`
	Redelivered int    `json:"redelivered"`
}

type HealthStatus struct {
	Healthy           bool            `json:"healthy"`
	SessionVersion    uint64          `json:"session_version"`
	Connections       int             `json:"connections"`
	DatabaseEnabled   bool            `json:"database_enabled"`
	DatabaseConnected bool            `json:"database_connected"`
	NATSEnabled       bool            `json:"nats_enabled"`
	NATSConnected     bool            `json:"nats_connected"`
	WorkoutConsumer   *ConsumerHealth `json:"workout_consumer,omitempty"`
	Errors            []string        `json:"errors"`
}

// HealthChecker reports the state of the authority and its optional
// backends. An unhealthy backend only affects this report; the session
// keeps serving.
type HealthChecker struct {
	store *session.Store
	cm    *ConnectionManager
	db    Pinger
	nats  ConnectedChecker

	consumer ConsumerInfoSource
}

// NewHealthChecker accepts nil db or nats when they are not configured
func NewHealthChecker(store *session.Store, cm *ConnectionManager, db Pinger, nats ConnectedChecker) *HealthChecker {
	return &HealthChecker{store: store, cm: cm, db: db, nats: nats}
}

// WatchConsumer adds the intake consumer to the report
func (h *HealthChecker) WatchConsumer(c ConsumerInfoSource) {
	h.consumer = c
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:        true,
		SessionVersion: h.store.Current().Version,
		Connections:    h.cm.GetConnectionStats().TotalConnections,
		Errors:         []string{},
	}

	if h.db != nil {
		status.DatabaseEnabled = true
		if err := h.db.Ping(ctx); err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		} else {
			status.DatabaseConnected = true
		}
	}

	if h.nats != nil {
		status.NATSEnabled = true
		status.NATSConnected = h.nats.Connected()
		if !status.NATSConnected {
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if h.consumer != nil {
		info, err := h.consumer.GetConsumerInfo(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("workout consumer info failed: %v", err))
		} else {
			status.WorkoutConsumer = &ConsumerHealth{
				Name:        info.Name,
				Pending:     info.NumPending,
				AckPending:  info.NumAckPending,
				Redelivered: info.NumRedelivered,
			}
		}
	}

	status.Healthy = len(status.Errors) == 0
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
