package stdio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport carries JSON-RPC messages as whole-message websocket frames
// instead of newline-framed stdio bytes. It implements the same Transport
// contract as StdioTransport, demonstrating that the protocol engine above
// it does not care how bytes move. Not wired into Manager by default: the
// Manager only ever supervises spawned stdio children.
type WSTransport struct {
	URL string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	onMessage subscribers[json.RawMessage]
	onError   subscribers[error]
	onClose   subscribers[*int]

	doneOnce sync.Once
	done     chan struct{}
}

// NewWSTransport constructs a transport dialing the given ws:// or wss://
// URL on Start.
func NewWSTransport(url string) *WSTransport {
	return &WSTransport{URL: url, done: make(chan struct{})}
}

func (t *WSTransport) OnMessage(fn func(json.RawMessage)) { t.onMessage.add(fn) }
func (t *WSTransport) OnError(fn func(error))              { t.onError.add(fn) }
func (t *WSTransport) OnClose(fn func(*int))                { t.onClose.add(fn) }

func (t *WSTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Start dials the websocket and begins the read pump.
func (t *WSTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: startupSafetyTimer}
	conn, _, err := dialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		return &SpawnFailedError{Cause: err}
	}

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	go t.pumpRead(conn)
	return nil
}

func (t *WSTransport) pumpRead(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			t.connected = false
			t.mu.Unlock()
			t.doneOnce.Do(func() { close(t.done) })
			code := websocketCloseCode(err)
			t.onClose.emit(&code)
			return
		}
		if !json.Valid(data) {
			t.onError.emit(fmt.Errorf("stdio: ws parse error: %s", excerpt(data)))
			continue
		}
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		t.onMessage.emit(raw)
	}
}

func websocketCloseCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}
	return -1
}

// Send writes one JSON-RPC message as a single text frame.
func (t *WSTransport) Send(msg json.RawMessage) error {
	t.mu.Lock()
	if !t.connected || t.conn == nil {
		t.mu.Unlock()
		return ErrNotConnected
	}
	conn := t.conn
	t.mu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("stdio: ws write failed: %w", err)
	}
	return nil
}

// Close sends a normal websocket close frame, then closes the underlying
// connection, escalating after the grace period if the peer never
// acknowledges.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.connected = false
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(shutdownGrace)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	select {
	case <-t.done:
	case <-time.After(shutdownGrace):
	}
	return conn.Close()
}
