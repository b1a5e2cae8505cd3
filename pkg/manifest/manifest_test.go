package manifest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golemhq/golemmcp/pkg/mcp"
)

func TestCache_LoadMissingFileIsNotAnError(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, c.Load())
	assert.Empty(t, c.ListServers())
}

func TestCache_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	c := New(path)
	c.AddServer(ServerConfig{Name: "search", Command: "search-server"})
	require.NoError(t, c.UpdateTools("search", []mcp.Tool{{Name: "web_search"}}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, c.Save())

	reloaded := New(path)
	require.NoError(t, reloaded.Load())
	entry, err := reloaded.GetServer("search")
	require.NoError(t, err)
	assert.Equal(t, "search-server", entry.Config.Command)
	require.Len(t, entry.Tools, 1)
	assert.Equal(t, "web_search", entry.Tools[0].Name)
	assert.True(t, entry.LastDiscovered.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCache_AddServerPreservesExistingTools(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "manifest.json"))
	c.AddServer(ServerConfig{Name: "search", Command: "old-cmd"})
	require.NoError(t, c.UpdateTools("search", []mcp.Tool{{Name: "web_search"}}, time.Now()))

	c.AddServer(ServerConfig{Name: "search", Command: "new-cmd"})
	entry, err := c.GetServer("search")
	require.NoError(t, err)
	assert.Equal(t, "new-cmd", entry.Config.Command)
	assert.Len(t, entry.Tools, 1)
}

func TestCache_RemoveServerIsIdempotent(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "manifest.json"))
	c.RemoveServer("never-existed")
	c.AddServer(ServerConfig{Name: "search", Command: "cmd"})
	c.RemoveServer("search")
	c.RemoveServer("search")
	assert.Empty(t, c.ListServers())
}

func TestCache_UpdateToolsUnknownServer(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "manifest.json"))
	err := c.UpdateTools("ghost", nil, time.Now())
	assert.ErrorIs(t, err, ErrUnknownServer)
}

func TestCache_FindToolQualified(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "manifest.json"))
	c.AddServer(ServerConfig{Name: "search", Command: "cmd"})
	require.NoError(t, c.UpdateTools("search", []mcp.Tool{{Name: "web_search"}}, time.Now()))

	server, tool, err := c.FindTool("search.web_search")
	require.NoError(t, err)
	assert.Equal(t, "search", server)
	assert.Equal(t, "web_search", tool.Name)
}

func TestCache_FindToolQualifiedUnknownServer(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "manifest.json"))
	_, _, err := c.FindTool("ghost.web_search")
	assert.ErrorIs(t, err, ErrUnknownServer)
}

func TestCache_FindToolUnqualifiedUnique(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "manifest.json"))
	c.AddServer(ServerConfig{Name: "search", Command: "cmd"})
	require.NoError(t, c.UpdateTools("search", []mcp.Tool{{Name: "web_search"}}, time.Now()))

	server, tool, err := c.FindTool("web_search")
	require.NoError(t, err)
	assert.Equal(t, "search", server)
	assert.Equal(t, "web_search", tool.Name)
}

func TestCache_FindToolUnqualifiedAmbiguousReturnsFirstAdded(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "manifest.json"))
	c.AddServer(ServerConfig{Name: "search-a", Command: "cmd"})
	c.AddServer(ServerConfig{Name: "search-b", Command: "cmd"})
	require.NoError(t, c.UpdateTools("search-a", []mcp.Tool{{Name: "fetch"}}, time.Now()))
	require.NoError(t, c.UpdateTools("search-b", []mcp.Tool{{Name: "fetch"}}, time.Now()))

	server, _, err := c.FindTool("fetch")
	require.NoError(t, err)
	assert.Equal(t, "search-a", server, "ambiguous unqualified name resolves to the first server added")
}

func TestCache_AllTools(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "manifest.json"))
	c.AddServer(ServerConfig{Name: "search", Command: "cmd"})
	require.NoError(t, c.UpdateTools("search", []mcp.Tool{{Name: "web_search"}, {Name: "fetch"}}, time.Now()))

	all := c.AllTools()
	require.Contains(t, all, "search")
	assert.Len(t, all["search"], 2)
}
