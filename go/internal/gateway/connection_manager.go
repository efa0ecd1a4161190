package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/rs/zerolog/log"
)

// Role tags what kind of client is on the other end of a connection
type Role string

const (
	RoleDisplay Role = "display"
	RoleRemote  Role = "remote"
	RoleAdmin   Role = "admin"
)

// ParseRole defaults unknown or missing roles to remote
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleDisplay, RoleAdmin:
		return Role(s)
	case "tv":
		return RoleDisplay
	default:
		return RoleRemote
	}
}

// MessageHandler processes frames read from a connection
type MessageHandler interface {
	HandleMessage(ctx context.Context, conn *Connection, message []byte)
}

// ConnectionManager manages WebSocket connections to the session
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  MessageHandler

	// side-channel envelopes (NEW_LOG); snapshots never go through here
	broadcastCh chan []byte
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID          string
	Role        Role
	Participant string
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager

	ConnectedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024, // workouts arrive over the socket
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			// LAN-only household deployment
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, handler MessageHandler) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 64
	}
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		handler:     handler,
		broadcastCh: make(chan []byte, 256),
	}
}

// Start begins processing side-channel broadcasts
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.fanOut(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket. attach is
// called with the new connection before any pump runs; it must register
// the connection and queue its first message.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, role Role, participant string, attach func(*Connection)) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := &Connection{
		ID:          uuid.New().String(),
		Role:        role,
		Participant: participant,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}

	attach(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("role", string(role)).
		Str("participant", participant).
		Msg("WebSocket connection established")

	return nil
}

// Register adds a connection to the broadcast set
func (cm *ConnectionManager) Register(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn]; !exists {
		return
	}
	delete(cm.connections, conn)
	close(conn.Send)
	conn.cancel()

	log.Info().
		Str("connection_id", conn.ID).
		Str("role", string(conn.Role)).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

// BroadcastSnapshot pushes a STATE_UPDATE to every connection. It is
// called synchronously from the store, so connections receive snapshots
// in the order they were produced.
func (cm *ConnectionManager) BroadcastSnapshot(snap session.Snapshot) {
	data, err := session.EncodeEnvelope(session.MessageTypeStateUpdate, snap)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot for broadcast")
		return
	}
	n := cm.fanOut(data)

	log.Debug().
		Uint64("version", snap.Version).
		Int("connections", n).
		Msg("snapshot broadcasted")
}

// Broadcast queues an envelope for every connection without ordering
// guarantees relative to snapshots
func (cm *ConnectionManager) Broadcast(t session.MessageType, payload any) error {
	data, err := session.EncodeEnvelope(t, payload)
	if err != nil {
		return err
	}
	select {
	case cm.broadcastCh <- data:
	default:
		log.Warn().Str("type", string(t)).Msg("broadcast channel full, dropping message")
	}
	return nil
}

// SendTo queues one envelope for a single connection
func (cm *ConnectionManager) SendTo(conn *Connection, t session.MessageType, payload any) error {
	data, err := session.EncodeEnvelope(t, payload)
	if err != nil {
		return err
	}
	if !cm.trySend(conn, data) {
		return fmt.Errorf("connection %s is not accepting messages", conn.ID)
	}
	return nil
}

// SendSnapshot queues a STATE_UPDATE for one connection
func (cm *ConnectionManager) SendSnapshot(conn *Connection, snap session.Snapshot) error {
	return cm.SendTo(conn, session.MessageTypeStateUpdate, snap)
}

func (cm *ConnectionManager) trySend(conn *Connection, data []byte) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.connections[conn] {
		return false
	}
	select {
	case conn.Send <- data:
		return true
	default:
		return false
	}
}

// fanOut sends data to every registered connection. A connection whose
// buffer is full is dropped; it will reconnect and get a fresh snapshot.
func (cm *ConnectionManager) fanOut(data []byte) int {
	var slow []*Connection

	cm.mu.RLock()
	n := len(cm.connections)
	for conn := range cm.connections {
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("role", string(conn.Role)).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
	}
	return n
}

// ConnectionStats is reported on /ws/stats
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ByRole           map[string]int `json:"by_role"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		TotalConnections: len(cm.connections),
		ByRole:           make(map[string]int),
	}
	for conn := range cm.connections {
		stats.ByRole[string(conn.Role)]++
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.Manager.handler != nil {
			c.Manager.handler.HandleMessage(c.ctx, c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
