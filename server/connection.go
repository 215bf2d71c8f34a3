package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/plo-core/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// ErrConnectionClosed mirrors the teacher's sentinel for a send attempted
// on an already-closed connection.
var ErrConnectionClosed = websocket.ErrCloseSent

// Router dispatches an inbound envelope from an authenticated connection.
// Server implements this; Connection itself holds no game-logic knowledge,
// matching the teacher's separation of transport (Connection) from game
// orchestration (GameService), generalized here to Matchmaker/TableInstance.
type Router interface {
	HandleEnvelope(conn *Connection, env *protocol.Envelope)
	HandleDisconnect(conn *Connection)
}

// Connection wraps one client WebSocket per spec §9's "opaque
// ConnectionHandle" re-architecture: it implements
// tableinstance.ConnectionHandle so the core never touches *websocket.Conn
// directly. Grounded on the teacher's internal/server/connection.go
// writePump/readPump/ping-pong structure.
type Connection struct {
	conn   *websocket.Conn
	send   chan *protocol.Envelope
	router Router
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	identity    string
	displayName string

	closeOnce sync.Once
}

// NewConnection wraps an accepted WebSocket connection.
func NewConnection(conn *websocket.Conn, router Router, logger zerolog.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:   conn,
		send:   make(chan *protocol.Envelope, 256),
		router: router,
		logger: logger.With().Str("component", "connection").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the read/write pumps. Must be called once per connection.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears down the connection exactly once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Identity implements tableinstance.ConnectionHandle.
func (c *Connection) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// SetIdentity records the authenticated identity for this socket, called
// once matchmaking:join (or a reconnect) succeeds.
func (c *Connection) SetIdentity(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

// Send implements tableinstance.ConnectionHandle: it queues env for
// delivery and never blocks the caller (a TableInstance's serial-queue
// goroutine) on a slow client.
func (c *Connection) Send(env *protocol.Envelope) error {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug().Interface("recovered", r).Msg("send on closed connection")
		}
	}()

	select {
	case c.send <- env:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn().Msg("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.router.HandleDisconnect(c)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("websocket read error")
			}
			return
		}

		c.router.HandleEnvelope(c, &env)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Error().Err(err).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
