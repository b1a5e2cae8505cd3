// Package manager implements the Server Manager (spec.md §4.8): the
// per-server state machine that owns a Transport+Engine+Client triple for
// each running server, and serializes start/stop/restart per server name.
package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golemhq/golemmcp/pkg/manifest"
	"github.com/golemhq/golemmcp/pkg/mcp/client"
	"github.com/golemhq/golemmcp/pkg/mcp/stdio"
	"github.com/golemhq/golemmcp/pkg/secrets"
)

// State is a server's lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateError    State = "error"
)

// Errors returned by the manager (spec.md §7, Manager*).
var (
	ErrAlreadyRunning = errors.New("manager: server already running")
	ErrNotFound       = errors.New("manager: server not found")
)

// StartupFailedError wraps the cause of a failed server startup.
type StartupFailedError struct {
	Server string
	Cause  error
}

func (e *StartupFailedError) Error() string {
	return fmt.Sprintf("manager: startup failed for %s: %v", e.Server, e.Cause)
}
func (e *StartupFailedError) Unwrap() error { return e.Cause }

// Watcher observes state transitions. Implementations must not block; the
// manager invokes watchers synchronously from the goroutine performing the
// transition.
type Watcher interface {
	OnStateChange(server string, from, to State)
}

// WatcherFunc adapts a function to the Watcher interface.
type WatcherFunc func(server string, from, to State)

// OnStateChange implements Watcher.
func (f WatcherFunc) OnStateChange(server string, from, to State) { f(server, from, to) }

// entry is the manager's full bookkeeping for one server: its
// currently-running connection (nil when not running) and a mutex
// serializing start/stop/restart mutations for this one name.
type entry struct {
	mu     sync.Mutex
	state  State
	client *client.Client
}

// Manager supervises a fleet of MCP servers described by a manifest.Cache.
// Mutations to a given server name are serialized via that server's own
// mutex, so different server names proceed fully in parallel (§9 Open
// Question resolution).
type Manager struct {
	cache    *manifest.Cache
	secrets  *secrets.Provider
	timeout  time.Duration

	mu       sync.RWMutex
	entries  map[string]*entry

	watchersMu sync.Mutex
	watchers   []Watcher
}

// New constructs a Manager backed by cache for config lookup and secrets
// for environment injection. timeout bounds the MCP handshake during
// startup.
func New(cache *manifest.Cache, secretProvider *secrets.Provider, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		cache:   cache,
		secrets: secretProvider,
		timeout: timeout,
		entries: make(map[string]*entry),
	}
}

// Watch registers a Watcher notified of every state transition.
func (m *Manager) Watch(w Watcher) {
	m.watchersMu.Lock()
	defer m.watchersMu.Unlock()
	m.watchers = append(m.watchers, w)
}

func (m *Manager) notify(server string, from, to State) {
	m.watchersMu.Lock()
	watchers := make([]Watcher, len(m.watchers))
	copy(watchers, m.watchers)
	m.watchersMu.Unlock()
	for _, w := range watchers {
		w.OnStateChange(server, from, to)
	}
}

// entryFor returns (creating if needed) the bookkeeping entry for a server
// name, under the manager's own lock just long enough to find-or-insert.
func (m *Manager) entryFor(name string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		e = &entry{state: StateStopped}
		m.entries[name] = e
	}
	return e
}

// Start spawns server `name`'s child process, performs the MCP handshake,
// discovers its tools, and transitions it to running. Starting an
// already-running server returns ErrAlreadyRunning. On any startup failure
// the server transitions to error and is evicted from the active map after
// the watcher has observed the error state, so a later Start tries fresh.
func (m *Manager) Start(ctx context.Context, name string) error {
	cfg, err := m.cache.GetServer(name)
	if err != nil {
		return err
	}

	e := m.entryFor(name)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning || e.state == StateStarting {
		return ErrAlreadyRunning
	}

	from := e.state
	e.state = StateStarting
	m.notify(name, from, StateStarting)

	env := os.Environ()
	envMap := make(map[string]string, len(cfg.Config.Env))
	for k, v := range cfg.Config.Env {
		envMap[k] = v
	}
	for k, v := range envMap {
		env = append(env, k+"="+v)
	}
	if m.secrets != nil {
		env = m.secrets.BuildEnv(name, env)
	}

	transport := stdio.NewStdioTransport(cfg.Config.Command, cfg.Config.Args, env)
	c, err := client.Connect(ctx, transport, m.timeout)
	if err != nil {
		e.state = StateError
		m.notify(name, StateStarting, StateError)
		m.evictAfterErrorReport(name)
		return &StartupFailedError{Server: name, Cause: err}
	}

	tools, err := c.ListTools(ctx, true, m.timeout)
	if err != nil {
		_ = c.Disconnect()
		e.state = StateError
		m.notify(name, StateStarting, StateError)
		m.evictAfterErrorReport(name)
		return &StartupFailedError{Server: name, Cause: err}
	}
	_ = m.cache.UpdateTools(name, tools, time.Now())

	e.client = c
	e.state = StateRunning
	m.notify(name, StateStarting, StateRunning)
	return nil
}

// evictAfterErrorReport removes an errored server's entry from the active
// map once its error-state transition has been reported to watchers, per
// the data-model invariant that error-state servers do not linger.
func (m *Manager) evictAfterErrorReport(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, name)
}

// Stop disconnects a running server's client and transitions it to
// stopped. Stopping an already-stopped server is a no-op (idempotent).
func (m *Manager) Stop(name string) error {
	e := m.entryFor(name)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return nil
	}
	from := e.state
	c := e.client
	e.client = nil
	e.state = StateStopped
	if c != nil {
		_ = c.Disconnect()
	}
	m.notify(name, from, StateStopped)
	return nil
}

// Restart stops then starts a server.
func (m *Manager) Restart(ctx context.Context, name string) error {
	if err := m.Stop(name); err != nil {
		return err
	}
	return m.Start(ctx, name)
}

// StartAll starts every server configured in the manifest that is not
// already running, collecting (not short-circuiting on) individual
// failures.
func (m *Manager) StartAll(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for _, entry := range m.cache.ListServers() {
		results[entry.Config.Name] = m.Start(ctx, entry.Config.Name)
	}
	return results
}

// StopAll stops every currently-tracked server.
func (m *Manager) StopAll() {
	m.mu.RLock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		_ = m.Stop(name)
	}
}

// State returns a server's current lifecycle state. An untracked server is
// reported as stopped.
func (m *Manager) State(name string) State {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return StateStopped
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// GetClient returns the connected client for a running server, or
// ErrNotFound if it is not currently running.
func (m *Manager) GetClient(name string) (*client.Client, error) {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning || e.client == nil {
		return nil, ErrNotFound
	}
	return e.client, nil
}

// List returns the state of every tracked server.
func (m *Manager) List() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]State, len(m.entries))
	for name, e := range m.entries {
		e.mu.Lock()
		out[name] = e.state
		e.mu.Unlock()
	}
	return out
}
