package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"relay-chat/internal/events"
	"relay-chat/internal/services"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// base64 images of up to 10MB plus the envelope
	maxMessageSize = 16 << 20
	sendBuffer     = 256
)

// Per-connection limits for cheap, chatty intents. Messages and uploads are limited per user
// in Redis by the delivery engine.
var (
	typingRate  = rate.Every(time.Second)
	typingBurst = 5
	pingRate    = rate.Every(time.Second)
	pingBurst   = 5
)

type clientLimiter struct {
	typing *rate.Limiter
	ping   *rate.Limiter
}

func newClientLimiter() *clientLimiter {
	return &clientLimiter{
		typing: rate.NewLimiter(typingRate, typingBurst),
		ping:   rate.NewLimiter(pingRate, pingBurst),
	}
}

func (l *clientLimiter) Allow(event string) bool {
	switch event {
	case events.EventTyping, events.EventStopTyping:
		return l.typing.Allow()
	case events.EventPing:
		return l.ping.Allow()
	default:
		return true
	}
}

// Client is one websocket connection. room and inRoom are guarded by the hub's lock.
type Client struct {
	ID     string
	UserID string

	session      services.Session
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	router       *Router
	limiter      *clientLimiter
	logger       *WebSocketLogger
	connectedAt  time.Time
	lastActivity atomic.Int64

	room   uuid.UUID
	inRoom bool
}

func NewClient(hub *Hub, conn *websocket.Conn, session services.Session, router *Router, logger *WebSocketLogger) *Client {
	c := &Client{
		ID:          session.ConnID,
		UserID:      session.UserID,
		session:     session,
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		router:      router,
		limiter:     newClientLimiter(),
		logger:      logger,
		connectedAt: time.Now(),
	}
	c.touch()
	return c
}

// SendMessage queues an encoded frame without blocking. It reports false when the buffer
// is full and the frame was dropped.
func (c *Client) SendMessage(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Client) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

func (c *Client) closeConn() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// readPump dispatches frames in arrival order until the connection fails.
func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.UserID, c.ID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		c.handleFrame(ctx, data)
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		if err == nil {
			err = relay_errors.Validation("event is required")
		}
		c.router.Reject(ctx, c.session, "message", err)
		return
	}

	if !c.limiter.Allow(env.Event) {
		c.logger.Warn("rate limit exceeded", c.UserID, c.ID, zap.String("msg_type", env.Event))
		return
	}

	if err := c.router.Dispatch(ctx, c.session, env); err != nil {
		c.logger.Warn("websocket handle message failed", c.UserID, c.ID, zap.String("msg_type", env.Event), zap.Error(err))
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
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if c.idleFor() > pongWait*2 {
				c.logger.Info("client idle timeout", c.UserID, c.ID)
				return
			}
		}
	}
}
