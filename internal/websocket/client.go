package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBufferSize = 256
	eventTimeout   = 10 * time.Second
)

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	id        string
	identity  *Identity
	closeOnce sync.Once
	log       zerolog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, identity *Identity) *Client {
	id := uuid.NewString()
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		id:       id,
		identity: identity,
		log: hub.log.With().
			Str("conn_id", id).
			Str("user_id", identity.UserID.String()).
			Logger(),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() uuid.UUID { return c.identity.UserID }

func (c *Client) Identity() *Identity { return c.identity }

// ReadPump handles inbound events one at a time, so a connection's events are
// processed in arrival order.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(ErrorPayload{Code: CodeInvalidPayload, Message: "Malformed message"})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		c.hub.HandleEvent(ctx, c, &msg)
		cancel()
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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

// Send queues msg without blocking. It reports false when the buffer is full
// or the client is already closed.
func (c *Client) Send(msg *Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Str("type", string(msg.Type)).Msg("failed to marshal message")
		return false
	}
	return c.trySend(data)
}

func (c *Client) trySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case c.send <- data:
		return true
	default:
		c.log.Warn().Msg("send buffer full, dropping message")
		return false
	}
}

func (c *Client) sendError(payload ErrorPayload) {
	msg, err := NewMessage(MessageTypeError, payload)
	if err != nil {
		return
	}
	c.Send(msg)
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

