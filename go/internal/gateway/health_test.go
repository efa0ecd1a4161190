package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConsumer struct {
	info *jetstream.ConsumerInfo
	err  error
}

func (s stubConsumer) GetConsumerInfo(context.Context) (*jetstream.ConsumerInfo, error) {
	return s.info, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthChecker_ReportsConsumerBacklog(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig(), nil)
	h := NewHealthChecker(session.NewStore(), cm, stubPinger{}, nil)
	h.WatchConsumer(stubConsumer{info: &jetstream.ConsumerInfo{
		Name:           "gymhub-gateway-workouts",
		NumPending:     3,
		NumAckPending:  1,
		NumRedelivered: 2,
	}})

	status := h.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.DatabaseConnected)
	require.NotNil(t, status.WorkoutConsumer)
	assert.Equal(t, ConsumerHealth{Name: "gymhub-gateway-workouts", Pending: 3, AckPending: 1, Redelivered: 2}, *status.WorkoutConsumer)
}

func TestHealthChecker_UnhealthyBackendsReturn503(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig(), nil)
	h := NewHealthChecker(session.NewStore(), cm, stubPinger{err: errors.New("connection refused")}, nil)
	h.WatchConsumer(stubConsumer{err: errors.New("nats: timeout")})

	status := h.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Nil(t, status.WorkoutConsumer)
	assert.Len(t, status.Errors, 2)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
