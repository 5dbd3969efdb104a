package farhadmarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"market_sync/internal/domain"
)

// wsSession wraps one live websocket connection. Writes are serialized;
// close is idempotent so every loop exit can tear the session down
// unconditionally.
type wsSession struct {
	conn    *websocket.Conn
	mu      sync.RWMutex
	writeMu sync.Mutex
	nextID  int64
}

// dialSession opens a websocket connection to the stream endpoint.
func dialSession(ctx context.Context, wsURL string) (*wsSession, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return &wsSession{conn: conn}, nil
}

// subscribe issues a channel subscription on the session.
func (s *wsSession) subscribe(channel string, body map[string]string) error {
	s.nextID++
	req := subscribeRequest{
		ID:     s.nextID,
		Method: "subscribe",
		Params: subscribeParams{Channel: channel, Body: body},
	}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.threadSafeWrite(websocket.TextMessage, b)
}

func (s *wsSession) threadSafeWrite(msgType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return fmt.Errorf("no conn")
	}
	return s.conn.WriteMessage(msgType, data)
}

// readMessage blocks for the next stream message, bounded by readTimeout.
func (s *wsSession) readMessage() (*wsMessage, error) {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return nil, fmt.Errorf("no conn")
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		// A bad payload is not a transport fault: the caller drops it and
		// keeps reading.
		return nil, &domain.MalformedMessageError{Kind: "envelope", Field: "json"}
	}
	return &msg, nil
}

// close releases the connection. Safe to call more than once.
func (s *wsSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
