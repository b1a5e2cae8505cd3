package manager

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golemhq/golemmcp/pkg/manifest"
)

func newTestManager(t *testing.T, toolNames ...string) (*Manager, string) {
	t.Helper()
	cache := manifest.New(filepath.Join(t.TempDir(), "manifest.json"))
	cmd, args, env := fakeServerCommand(t, toolNames...)
	cache.AddServer(manifest.ServerConfig{Name: "fixture", Command: cmd, Args: args, Env: env})
	return New(cache, nil, 5*time.Second), "fixture"
}

func TestManager_StartTransitionsToRunningAndDiscoversTools(t *testing.T) {
	m, name := newTestManager(t, "web_search", "fetch")

	var transitions []State
	m.Watch(WatcherFunc(func(server string, from, to State) {
		if server == name {
			transitions = append(transitions, to)
		}
	}))

	require.NoError(t, m.Start(context.Background(), name))
	assert.Equal(t, StateRunning, m.State(name))
	assert.Equal(t, []State{StateStarting, StateRunning}, transitions)

	c, err := m.GetClient(name)
	require.NoError(t, err)
	tools, err := c.ListTools(context.Background(), false, time.Second)
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	require.NoError(t, m.Stop(name))
}

func TestManager_StartAlreadyRunningFails(t *testing.T) {
	m, name := newTestManager(t)
	require.NoError(t, m.Start(context.Background(), name))
	defer m.Stop(name)

	err := m.Start(context.Background(), name)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestManager_StartUnknownServer(t *testing.T) {
	cache := manifest.New(filepath.Join(t.TempDir(), "manifest.json"))
	m := New(cache, nil, time.Second)
	err := m.Start(context.Background(), "ghost")
	assert.ErrorIs(t, err, manifest.ErrUnknownServer)
}

func TestManager_StartFailureEvictsEntryAndTransitionsToError(t *testing.T) {
	cache := manifest.New(filepath.Join(t.TempDir(), "manifest.json"))
	cache.AddServer(manifest.ServerConfig{Name: "broken", Command: "/no/such/binary-golemmcp-test"})
	m := New(cache, nil, time.Second)

	var sawError bool
	m.Watch(WatcherFunc(func(server string, from, to State) {
		if server == "broken" && to == StateError {
			sawError = true
		}
	}))

	err := m.Start(context.Background(), "broken")
	var startupErr *StartupFailedError
	require.ErrorAs(t, err, &startupErr)
	assert.True(t, sawError)

	// evicted, so a later Start attempt is treated as fresh (not
	// ErrAlreadyRunning) and the untracked server reports stopped.
	assert.Equal(t, StateStopped, m.State("broken"))
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m, name := newTestManager(t)
	require.NoError(t, m.Stop(name)) // never started
	require.NoError(t, m.Start(context.Background(), name))
	require.NoError(t, m.Stop(name))
	require.NoError(t, m.Stop(name))
	assert.Equal(t, StateStopped, m.State(name))
}

func TestManager_RestartReconnects(t *testing.T) {
	m, name := newTestManager(t)
	require.NoError(t, m.Start(context.Background(), name))
	require.NoError(t, m.Restart(context.Background(), name))
	assert.Equal(t, StateRunning, m.State(name))
	require.NoError(t, m.Stop(name))
}

func TestManager_GetClientNotRunning(t *testing.T) {
	m, name := newTestManager(t)
	_, err := m.GetClient(name)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestManager_PerServerMutexAllowsConcurrentDistinctServers demonstrates
// that two different server names make startup progress concurrently: the
// manager serializes mutations per name, not across the whole fleet.
func TestManager_PerServerMutexAllowsConcurrentDistinctServers(t *testing.T) {
	cache := manifest.New(filepath.Join(t.TempDir(), "manifest.json"))
	for _, name := range []string{"fixture-a", "fixture-b"} {
		cmd, args, env := fakeServerCommand(t)
		cache.AddServer(manifest.ServerConfig{Name: name, Command: cmd, Args: args, Env: env})
	}
	m := New(cache, nil, 5*time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, name := range []string{"fixture-a", "fixture-b"} {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			errs <- m.Start(context.Background(), n)
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, StateRunning, m.State("fixture-a"))
	assert.Equal(t, StateRunning, m.State("fixture-b"))
}
