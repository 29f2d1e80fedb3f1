package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dom/foodieswipe/internal/websocket"
	gorillaWS "github.com/gorilla/websocket"
)

// Socket is a blocking realtime client; the simulator drives one request at a
// time so no read pump is needed.
type Socket struct {
	name string
	conn *gorillaWS.Conn
}

func DialSocket(apiURL, token, name string) (*Socket, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/api/v1/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	dialer := *gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", name, err)
	}

	s := &Socket{name: name, conn: conn}
	if _, err := s.Await(websocket.MessageTypeAuthenticated, 5*time.Second); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Socket) Send(msgType websocket.MessageType, payload interface{}) error {
	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

// Await reads until a message of msgType arrives. A server error aborts the
// wait; other messages are skipped.
func (s *Socket) Await(msgType websocket.MessageType, timeout time.Duration) (*websocket.Message, error) {
	deadline := time.Now().Add(timeout)
	s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		var msg websocket.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("%s waiting for %s: %w", s.name, msgType, err)
		}
		if msg.Type == msgType {
			return &msg, nil
		}
		if msg.Type == websocket.MessageTypeError {
			var p websocket.ErrorPayload
			json.Unmarshal(msg.Payload, &p)
			return nil, fmt.Errorf("%s got %s: %s", s.name, p.Code, p.Message)
		}
	}
}

func (s *Socket) Close() error {
	s.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
	return s.conn.Close()
}
