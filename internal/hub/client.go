package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/hallway/backend/internal/chat"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/users"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 64
)

// SubmitFunc hands an inbound text payload to the message relay.
type SubmitFunc func(ctx context.Context, sender users.Identity, text string) (chat.Message, error)

// Client is one admitted realtime connection.
type Client struct {
	identity users.Identity
	conn     *websocket.Conn
	hub      *Hub
	logger   *zap.Logger
	send     chan ServerEvent
}

// NewClient wraps an upgraded connection with its verified identity.
func NewClient(conn *websocket.Conn, identity users.Identity, h *Hub, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		identity: identity,
		conn:     conn,
		hub:      h,
		logger:   logger,
		send:     make(chan ServerEvent, sendBufferSize),
	}
}

// Identity returns the verified identity bound at admission time.
func (c *Client) Identity() users.Identity {
	return c.identity
}

// Queue enqueues an event for delivery, dropping it when the buffer is full.
func (c *Client) Queue(event ServerEvent) bool {
	select {
	case c.send <- event:
		return true
	default:
		c.logger.Warn("dropping event, client send buffer full",
			zap.String("event", event.Type),
			zap.String("username", c.identity.Username))
		c.hub.metrics.BroadcastDropped()
		return false
	}
}

// WritePump drains the send buffer onto the connection and keeps the
// connection alive with pings. It exits when the buffer closes or a write
// fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				c.logger.Error("failed to encode event", zap.Error(err))
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// ReadPump consumes inbound events until the connection drops, handing
// sendMessage payloads to the relay. On exit the client leaves the hub.
func (c *Client) ReadPump(submit SubmitFunc) {
	defer func() {
		c.conn.Close()
		c.hub.Unregister(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Debug("read failed", zap.Error(err))
			}
			return
		}

		var event ClientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.logger.Debug("discarding unparseable client event", zap.Error(err))
			continue
		}

		switch event.Type {
		case EventSendMessage:
			if _, err := submit(context.Background(), c.identity, event.Text); err != nil {
				// empty payloads are a silent no-op on the realtime channel
				if !errors.Is(err, chat.ErrEmptyMessage) {
					c.logger.Error("failed to relay message",
						zap.String("username", c.identity.Username), zap.Error(err))
				}
			}
		default:
			c.logger.Debug("ignoring unknown client event", zap.String("event", event.Type))
		}
	}
}
