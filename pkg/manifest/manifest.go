// Package manifest implements the Manifest Cache (spec.md §4.4): the
// in-memory registry of configured servers and their discovered tools,
// persisted to a JSON file on disk.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golemhq/golemmcp/pkg/mcp"
)

// Errors returned by the cache (spec.md §7, Manifest*).
var (
	ErrUnknownServer    = errors.New("manifest: unknown server")
	ErrInvalidConfigFile = errors.New("manifest: invalid config file")
)

// DefaultPath is the manifest location used when the caller does not
// override it.
const DefaultPath = ".golem/mcp-manifest.json"

// ServerConfig is the user-supplied configuration for one server.
type ServerConfig struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ServerEntry is the cache's full record for one configured server,
// combining its config with the last-known discovery results.
type ServerEntry struct {
	Config         ServerConfig `json:"config"`
	Tools          []mcp.Tool   `json:"tools,omitempty"`
	LastDiscovered time.Time    `json:"lastDiscovered,omitempty"`
}

// document is the on-disk shape of the manifest file.
type document struct {
	Servers map[string]ServerEntry `json:"servers"`
}

// Cache is the in-memory manifest, mirrored to a JSON file on disk.
type Cache struct {
	path string

	mu      sync.RWMutex
	servers map[string]*ServerEntry
	order   []string // insertion order of servers, for deterministic unqualified lookup
}

// New constructs an empty cache bound to path (not yet loaded).
func New(path string) *Cache {
	if path == "" {
		path = DefaultPath
	}
	return &Cache{path: path, servers: make(map[string]*ServerEntry)}
}

// Load reads the manifest file from disk, if present. A missing file is
// not an error — the cache simply starts empty.
func (c *Cache) Load() error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfigFile, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfigFile, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.servers = make(map[string]*ServerEntry, len(doc.Servers))
	c.order = nil
	for name, entry := range doc.Servers {
		e := entry
		c.servers[name] = &e
		c.order = append(c.order, name)
	}
	// Save writes servers sorted by name; keep that order so unqualified
	// lookups stay deterministic after a reload.
	sort.Strings(c.order)
	return nil
}

// Save writes the current manifest to disk, creating parent directories as
// needed.
func (c *Cache) Save() error {
	c.mu.RLock()
	doc := document{Servers: make(map[string]ServerEntry, len(c.servers))}
	for name, entry := range c.servers {
		doc.Servers[name] = *entry
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("manifest: mkdir: %w", err)
		}
	}
	return os.WriteFile(c.path, data, 0o644)
}

// AddServer registers a new server config, replacing any existing entry of
// the same name but preserving its prior discovered tools if present.
func (c *Cache) AddServer(cfg ServerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.servers[cfg.Name]
	entry := &ServerEntry{Config: cfg}
	if ok {
		entry.Tools = existing.Tools
		entry.LastDiscovered = existing.LastDiscovered
	} else {
		c.order = append(c.order, cfg.Name)
	}
	c.servers[cfg.Name] = entry
}

// RemoveServer deletes a server's entry. Removing an unknown server is a
// no-op, matching idempotent CLI semantics.
func (c *Cache) RemoveServer(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.servers[name]; !ok {
		return
	}
	delete(c.servers, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// GetServer returns a copy of one server's entry.
func (c *Cache) GetServer(name string) (ServerEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.servers[name]
	if !ok {
		return ServerEntry{}, fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	return *entry, nil
}

// ListServers returns every configured server entry, in no particular
// order.
func (c *Cache) ListServers() []ServerEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ServerEntry, 0, len(c.servers))
	for _, entry := range c.servers {
		out = append(out, *entry)
	}
	return out
}

// UpdateTools records a fresh tool discovery result for a server.
func (c *Cache) UpdateTools(name string, tools []mcp.Tool, discoveredAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.servers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	entry.Tools = tools
	entry.LastDiscovered = discoveredAt
	return nil
}

// AllTools returns every tool across every server, keyed by server name.
func (c *Cache) AllTools() map[string][]mcp.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]mcp.Tool, len(c.servers))
	for name, entry := range c.servers {
		out[name] = entry.Tools
	}
	return out
}

// FindTool resolves a tool reference, which may be qualified
// ("server.tool") or unqualified ("tool"). A qualified name must match an
// existing server and one of its tools exactly. An unqualified name is
// matched against each server's tool list in the order servers were added
// to the cache (servers read by Load come in name order); the first match
// wins.
func (c *Cache) FindTool(ref string) (server string, tool mcp.Tool, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if srv, name, ok := strings.Cut(ref, "."); ok {
		entry, exists := c.servers[srv]
		if !exists {
			return "", mcp.Tool{}, fmt.Errorf("%w: %s", ErrUnknownServer, srv)
		}
		for _, t := range entry.Tools {
			if t.Name == name {
				return srv, t, nil
			}
		}
		return "", mcp.Tool{}, fmt.Errorf("manifest: tool not found: %s", ref)
	}

	for _, name := range c.order {
		entry, ok := c.servers[name]
		if !ok {
			continue
		}
		for _, t := range entry.Tools {
			if t.Name == ref {
				return name, t, nil
			}
		}
	}
	return "", mcp.Tool{}, fmt.Errorf("manifest: tool not found: %s", ref)
}
