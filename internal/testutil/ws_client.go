package testutil

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dom/foodieswipe/internal/websocket"
	gorillaWS "github.com/gorilla/websocket"
)

// WSClient is a test WebSocket client
type WSClient struct {
	t        *testing.T
	conn     *gorillaWS.Conn
	messages chan *websocket.Message
	errors   chan error
	done     chan struct{}
	mu       sync.Mutex
}

// NewWSClient creates a new WebSocket test client
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()

	conn, err := DialWS(url, nil)
	if err != nil {
		t.Fatalf("failed to connect to websocket: %v", err)
	}

	client := &WSClient{
		t:        t,
		conn:     conn,
		messages: make(chan *websocket.Message, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}

	go client.readPump()

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

// NewAuthenticatedWSClient connects and consumes the authenticated greeting.
func NewAuthenticatedWSClient(t *testing.T, ts *TestServer, token string) *WSClient {
	t.Helper()
	client := NewWSClient(t, ts.WebSocketURL(token))
	client.ExpectMessage(websocket.MessageTypeAuthenticated, 2*time.Second)
	return client
}

// DialWS dials without failing the test, for handshake rejection cases. On a
// failed handshake the returned error wraps gorillaWS.ErrBadHandshake.
func DialWS(url string, header http.Header) (*gorillaWS.Conn, error) {
	conn, _, err := DialWSResponse(url, header)
	return conn, err
}

func DialWSResponse(url string, header http.Header) (*gorillaWS.Conn, *http.Response, error) {
	dialer := *gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second
	return dialer.Dial(url, header)
}

// readPump reads messages from the WebSocket connection
func (c *WSClient) readPump() {
	defer close(c.messages)
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				select {
				case <-c.done:
					return
				case c.errors <- err:
				}
				return
			}

			var msg websocket.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.errors <- err
				continue
			}

			select {
			case c.messages <- &msg:
			case <-c.done:
				return
			}
		}
	}
}

// Close closes the WebSocket connection gracefully
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

// Send writes one event with the given payload.
func (c *WSClient) Send(msgType websocket.MessageType, payload interface{}) {
	c.t.Helper()

	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		c.t.Fatalf("failed to build message: %v", err)
	}
	c.SendMessage(msg)
}

func (c *WSClient) SendMessage(msg *websocket.Message) {
	c.t.Helper()

	data, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("failed to marshal message: %v", err)
	}
	c.SendRaw(data)
}

// SendRaw writes data as-is, for malformed-input cases.
func (c *WSClient) SendRaw(data []byte) {
	c.t.Helper()

	c.mu.Lock()
	err := c.conn.WriteMessage(gorillaWS.TextMessage, data)
	c.mu.Unlock()

	if err != nil {
		c.t.Fatalf("failed to send message: %v", err)
	}
}

func (c *WSClient) JoinSession(sessionID string) {
	c.Send(websocket.MessageTypeSessionJoin, websocket.SessionJoinPayload{SessionID: sessionID})
}

func (c *WSClient) LeaveSession(sessionID string) {
	c.Send(websocket.MessageTypeSessionLeave, websocket.SessionLeavePayload{SessionID: sessionID})
}

func (c *WSClient) Swipe(sessionID, dishID, action string) {
	c.Send(websocket.MessageTypeCoupleSwipe, websocket.CoupleSwipePayload{
		SessionID: sessionID,
		DishID:    dishID,
		Action:    action,
		DishData:  json.RawMessage(`{"name":"` + dishID + `"}`),
	})
}

// ExpectMessage waits for a message of the given type, skipping others
func (c *WSClient) ExpectMessage(msgType websocket.MessageType, timeout time.Duration) *websocket.Message {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg, ok := <-c.messages:
			if !ok {
				c.t.Fatalf("connection closed while waiting for %s", msgType)
				return nil
			}
			if msg.Type == msgType {
				return msg
			}
		case err := <-c.errors:
			c.t.Fatalf("websocket error while waiting for %s: %v", msgType, err)
			return nil
		case <-deadline:
			c.t.Fatalf("timeout waiting for message type %s", msgType)
			return nil
		}
	}
}

// ExpectPayload waits for msgType and decodes its payload into v.
func (c *WSClient) ExpectPayload(msgType websocket.MessageType, timeout time.Duration, v interface{}) {
	c.t.Helper()

	msg := c.ExpectMessage(msgType, timeout)
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		c.t.Fatalf("failed to unmarshal %s payload: %v", msgType, err)
	}
}

// ExpectError waits for an error message
func (c *WSClient) ExpectError(timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	var payload websocket.ErrorPayload
	c.ExpectPayload(websocket.MessageTypeError, timeout, &payload)
	return &payload
}

// ExpectErrorWithCode waits for an error message with a specific code
func (c *WSClient) ExpectErrorWithCode(code string, timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	payload := c.ExpectError(timeout)
	if payload.Code != code {
		c.t.Fatalf("expected error code %s, got %s (%s)", code, payload.Code, payload.Message)
	}
	return payload
}

// ExpectNoMessage verifies no message of the type arrives within the timeout
func (c *WSClient) ExpectNoMessage(msgType websocket.MessageType, timeout time.Duration) {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg, ok := <-c.messages:
			if !ok {
				return
			}
			if msg.Type == msgType {
				c.t.Fatalf("unexpected message of type %s: %s", msgType, string(msg.Payload))
			}
		case <-deadline:
			return
		}
	}
}

// ExpectClosed waits for the server to drop the connection.
func (c *WSClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-c.messages:
			if !ok {
				return
			}
		case <-c.errors:
			return
		case <-deadline:
			c.t.Fatalf("connection still open after %s", timeout)
		}
	}
}

// DrainMessages discards everything already buffered
func (c *WSClient) DrainMessages() {
	c.DrainMessagesWithTimeout(50 * time.Millisecond)
}

func (c *WSClient) DrainMessagesWithTimeout(timeout time.Duration) {
	for {
		select {
		case _, ok := <-c.messages:
			if !ok {
				return
			}
		case <-time.After(timeout):
			return
		}
	}
}
