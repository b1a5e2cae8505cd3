package stdio

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// catScript is a trivial child that echoes each stdin line straight back to
// stdout, used to exercise the transport without a real MCP server.
func catScript() (string, []string) {
	return "sh", []string{"-c", "while IFS= read -r line; do echo \"$line\"; done"}
}

func TestStdioTransport_StartSendReceiveClose(t *testing.T) {
	cmd, args := catScript()
	tr := NewStdioTransport(cmd, args, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tr.Start(ctx))
	require.True(t, tr.IsConnected())

	var mu sync.Mutex
	received := make(chan json.RawMessage, 1)
	tr.OnMessage(func(msg json.RawMessage) {
		mu.Lock()
		defer mu.Unlock()
		received <- msg
	})

	require.NoError(t, tr.Send(json.RawMessage(`{"hello":"world"}`)))

	select {
	case msg := <-received:
		assert.JSONEq(t, `{"hello":"world"}`, string(msg))
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}

	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())
}

func TestStdioTransport_CloseIsIdempotent(t *testing.T) {
	cmd, args := catScript()
	tr := NewStdioTransport(cmd, args, nil)
	require.NoError(t, tr.Start(context.Background()))
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}

func TestStdioTransport_SendBeforeStartFails(t *testing.T) {
	tr := NewStdioTransport("sh", nil, nil)
	err := tr.Send(json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestStdioTransport_DoubleStartFails(t *testing.T) {
	cmd, args := catScript()
	tr := NewStdioTransport(cmd, args, nil)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	err := tr.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStdioTransport_ProcessExitedImmediately(t *testing.T) {
	tr := NewStdioTransport("sh", []string{"-c", "exit 3"}, nil)
	err := tr.Start(context.Background())
	var exitErr *ProcessExitedImmediatelyError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
}

func TestStdioTransport_SpawnFailed(t *testing.T) {
	tr := NewStdioTransport("/no/such/binary-golemmcp-test", nil, nil)
	err := tr.Start(context.Background())
	var spawnErr *SpawnFailedError
	assert.ErrorAs(t, err, &spawnErr)
}

func TestStdioTransport_OnCloseFiresOnExit(t *testing.T) {
	tr := NewStdioTransport("sh", []string{"-c", "exit 0"}, nil)
	closed := make(chan *int, 1)
	tr.OnClose(func(code *int) { closed <- code })

	err := tr.Start(context.Background())
	var exitErr *ProcessExitedImmediatelyError
	require.ErrorAs(t, err, &exitErr)

	select {
	case code := <-closed:
		require.NotNil(t, code)
		assert.Equal(t, 0, *code)
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose never fired")
	}
}
