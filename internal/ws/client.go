package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/manpreetbhatti/driftrace/backend/internal/protocol"
	"github.com/manpreetbhatti/driftrace/backend/internal/ratelimit"
	"github.com/manpreetbhatti/driftrace/backend/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	session     *session.Handler
	rateLimiter *ratelimit.Limiter
	clientID    uuid.UUID
	logger      *slog.Logger

	mu        sync.Mutex
	closed    bool
	dropped   bool
	closeOnce sync.Once
}

func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(hub, conn)

	if !hub.enter(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	clientID := uuid.New()
	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, hub.config.SendBuffer),
		rateLimiter: hub.limiters.Get(clientID.String()),
		clientID:    clientID,
		logger:      hub.logger.With("connection_id", clientID),
	}
	client.session = session.New(clientID, hub.registry, client, hub.logger)
	return client
}

// Push queues a frame without blocking. A client that cannot keep up is
// disconnected; its read pump then runs the normal leave path.
func (c *Client) Push(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.dropped {
		return
	}

	select {
	case c.send <- frame:
	default:
		c.dropped = true
		c.logger.Warn("send buffer full, dropping client")
		c.closeConn()
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

func (c *Client) respond(id uint64, result any, callErr *protocol.Error) {
	frame, err := protocol.EncodeResponse(id, result, callErr)
	if err != nil {
		c.logger.Error("encode response", "id", id, "error", err)
		return
	}
	c.Push(frame)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.closeConn()
	}()

	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket error", "error", err)
			}
			break
		}

		call, err := protocol.ParseCall(message)
		if err != nil {
			c.logger.Warn("invalid call", "error", err)
			c.respond(call.ID, nil, session.ErrorFor(err))
			continue
		}

		if !c.rateLimiter.Allow() {
			violations := c.rateLimiter.Violations()
			if violations%100 == 1 {
				c.logger.Warn("rate limit exceeded", "method", call.Method, "warning", violations)
			}
			if violations > c.hub.config.MaxViolations {
				c.logger.Warn("disconnecting client for excessive rate limit violations")
				return
			}
			// Position updates are superseded by the next one anyway
			if call.Method != protocol.MethodMove {
				c.respond(call.ID, nil, &protocol.Error{Code: protocol.CodeRateLimited, Message: "too many calls"})
			}
			continue
		}

		result, err := c.session.Dispatch(call)
		if err != nil {
			c.logger.Info("call failed", "method", call.Method, "error", err)
		}
		c.respond(call.ID, result, session.ErrorFor(err))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
