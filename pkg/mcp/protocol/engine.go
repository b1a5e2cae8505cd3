// Package protocol implements the JSON-RPC/MCP protocol engine: request ID
// assignment, request/response correlation with per-request timeouts, the
// initialize/shutdown handshake, and notification dispatch, sitting on top
// of a stdio.Transport.
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golemhq/golemmcp/pkg/mcp"
	"github.com/golemhq/golemmcp/pkg/mcp/stdio"
)

// Errors returned by the engine (spec.md §7, Protocol*).
var (
	// ErrTimeout is returned when a request's timer fires before a matching
	// response arrives.
	ErrTimeout = errors.New("protocol: request timed out")
	// ErrTransportClosed is returned to all pending requests when the
	// underlying transport closes.
	ErrTransportClosed = errors.New("protocol: transport closed")
	// ErrShuttingDown is returned by any call made once Shutdown has sent its
	// best-effort "shutdown" request.
	ErrShuttingDown = errors.New("protocol: engine is shutting down")
)

// DefaultRequestTimeout is used when a call site does not specify one.
const DefaultRequestTimeout = 30 * time.Second

// shutdownRequestTimeout bounds the best-effort "shutdown" request Shutdown
// sends before tearing the transport down; a server that never answers it
// must not keep Shutdown from completing for long.
const shutdownRequestTimeout = 5 * time.Second

// pending tracks one in-flight request: exactly one of its resolution paths
// (response arrives, timer fires, transport closes) may run, guarded by
// Engine.mu so "timer fires" and "response arrives" are mutually exclusive.
type pending struct {
	resultCh chan json.RawMessage
	errCh    chan error
	timer    *time.Timer
}

// Engine correlates outbound JSON-RPC requests with inbound responses over
// a single Transport, and dispatches inbound notifications to subscribers.
type Engine struct {
	transport stdio.Transport

	nextID int64

	mu           sync.Mutex
	pendingByID  map[int64]*pending
	shuttingDown bool
	closed       bool
	initialized  bool

	notifyMu  sync.Mutex
	notifyFns []func(method string, params json.RawMessage)
}

// NewEngine wraps an already-constructed Transport. The caller starts the
// transport (spawns the child) before calling Initialize; the engine never
// starts it.
func NewEngine(transport stdio.Transport) *Engine {
	e := &Engine{
		transport:   transport,
		pendingByID: make(map[int64]*pending),
	}
	transport.OnMessage(e.handleMessage)
	transport.OnClose(func(*int) { e.cancelAllPending(ErrTransportClosed) })
	return e
}

// OnNotification registers a subscriber invoked for every inbound
// notification (a message with a method and no id).
func (e *Engine) OnNotification(fn func(method string, params json.RawMessage)) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	e.notifyFns = append(e.notifyFns, fn)
}

// handleMessage classifies one inbound line and routes it to either the
// pending-request table (responses) or the notification subscribers.
func (e *Engine) handleMessage(raw json.RawMessage) {
	var msg mcp.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch {
	case msg.IsResponse():
		var id int64
		if err := json.Unmarshal(msg.ID, &id); err != nil {
			return
		}
		e.resolve(id, msg.Result, msg.Error)
	case msg.IsNotification():
		e.notifyMu.Lock()
		fns := make([]func(string, json.RawMessage), len(e.notifyFns))
		copy(fns, e.notifyFns)
		e.notifyMu.Unlock()
		for _, fn := range fns {
			fn(msg.Method, msg.Params)
		}
	}
}

// resolve delivers a response (or JSON-RPC error) to the pending request
// matching id, if it is still pending. It is a no-op if the request's timer
// already fired or the transport already closed it — "exactly once" is
// enforced by removing the entry from pendingByID under the same lock the
// timer callback and cancelAllPending use.
func (e *Engine) resolve(id int64, result json.RawMessage, rpcErr *mcp.Error) {
	e.mu.Lock()
	p, ok := e.pendingByID[id]
	if ok {
		delete(e.pendingByID, id)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	p.timer.Stop()
	if rpcErr != nil {
		p.errCh <- rpcErr
		return
	}
	p.resultCh <- result
}

// cancelAllPending resolves every still-pending request with err; used on
// transport close and on Shutdown.
func (e *Engine) cancelAllPending(err error) {
	e.mu.Lock()
	all := e.pendingByID
	e.pendingByID = make(map[int64]*pending)
	e.mu.Unlock()

	for _, p := range all {
		p.timer.Stop()
		p.errCh <- err
	}
}

// Request sends a JSON-RPC request and blocks until a response arrives, the
// timeout elapses, the transport closes, or ctx is done.
func (e *Engine) Request(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	e.mu.Lock()
	if e.shuttingDown {
		e.mu.Unlock()
		return nil, ErrShuttingDown
	}
	id := atomic.AddInt64(&e.nextID, 1)
	p := &pending{
		resultCh: make(chan json.RawMessage, 1),
		errCh:    make(chan error, 1),
	}
	p.timer = time.AfterFunc(timeout, func() { e.timeout(id) })
	e.pendingByID[id] = p
	e.mu.Unlock()

	raw, err := json.Marshal(mcp.Request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		e.mu.Lock()
		delete(e.pendingByID, id)
		e.mu.Unlock()
		p.timer.Stop()
		return nil, fmt.Errorf("protocol: marshal request: %w", err)
	}
	if err := e.transport.Send(raw); err != nil {
		e.mu.Lock()
		delete(e.pendingByID, id)
		e.mu.Unlock()
		p.timer.Stop()
		return nil, err
	}

	select {
	case result := <-p.resultCh:
		return result, nil
	case err := <-p.errCh:
		return nil, err
	case <-ctx.Done():
		e.mu.Lock()
		delete(e.pendingByID, id)
		e.mu.Unlock()
		p.timer.Stop()
		return nil, ctx.Err()
	}
}

// timeout fires when a request's timer elapses before a response arrives.
func (e *Engine) timeout(id int64) {
	e.mu.Lock()
	p, ok := e.pendingByID[id]
	if ok {
		delete(e.pendingByID, id)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	p.errCh <- ErrTimeout
}

// Notify sends a JSON-RPC notification (no response expected).
func (e *Engine) Notify(method string, params any) error {
	e.mu.Lock()
	if e.shuttingDown {
		e.mu.Unlock()
		return ErrShuttingDown
	}
	e.mu.Unlock()

	raw, err := json.Marshal(mcp.Notification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("protocol: marshal notification: %w", err)
	}
	return e.transport.Send(raw)
}

// Initialize performs the MCP handshake: sends "initialize", waits for the
// result, then sends the "initialized" notification per the MCP lifecycle.
func (e *Engine) Initialize(ctx context.Context, clientInfo mcp.EntityInfo, timeout time.Duration) (*mcp.InitializeResult, error) {
	params := mcp.InitializeParams{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo,
	}
	raw, err := e.Request(ctx, "initialize", params, timeout)
	if err != nil {
		return nil, err
	}
	var result mcp.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("protocol: decode initialize result: %w", err)
	}
	if err := e.Notify("notifications/initialized", nil); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()
	return &result, nil
}

// Shutdown sends a best-effort "shutdown" request if the engine was
// initialized (its result, if any, and any error are both ignored — the
// transport is being torn down regardless), then marks the engine as
// shutting down (rejecting new calls) and not initialized, cancels every
// remaining pending request, and closes the transport.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	wasInitialized := e.initialized
	e.mu.Unlock()

	if wasInitialized {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownRequestTimeout)
		_, _ = e.Request(ctx, "shutdown", nil, shutdownRequestTimeout)
		cancel()
	}

	e.mu.Lock()
	e.shuttingDown = true
	e.initialized = false
	e.mu.Unlock()

	e.cancelAllPending(ErrShuttingDown)
	return e.transport.Close()
}
