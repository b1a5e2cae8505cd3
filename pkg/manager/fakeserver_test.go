package manager

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/golemhq/golemmcp/pkg/mcp"
)

// helperProcessEnv, when set in a child's environment, re-execs this test
// binary as a minimal stdio MCP server instead of running the test suite.
// This is the standard os/exec test-helper-process pattern (as in the
// stdlib's own os/exec tests): spawning a real child process that speaks
// the wire protocol is more honest than mocking the transport.
const helperProcessEnv = "GOLEMMCP_TEST_HELPER_PROCESS"

func TestMain(m *testing.M) {
	if os.Getenv(helperProcessEnv) == "1" {
		runFakeMCPServer()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// fakeServerCommand returns a command/args pair that re-execs the test
// binary in helper-process mode, optionally advertising toolNames, plus the
// env overrides a manifest.ServerConfig needs to trigger that mode.
func fakeServerCommand(t *testing.T, toolNames ...string) (string, []string, map[string]string) {
	t.Helper()
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	env := map[string]string{
		helperProcessEnv:       "1",
		"GOLEMMCP_TEST_TOOLS": joinCSV(toolNames),
	}
	return self, []string{"-test.run=^TestHelperProcessNeverMatches$"}, env
}

func joinCSV(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// runFakeMCPServer implements just enough of the MCP wire protocol to
// satisfy Connect + ListTools: it answers "initialize" and "tools/list"
// and ignores everything else (including the "initialized" notification).
func runFakeMCPServer() {
	toolNames := splitCSV(os.Getenv("GOLEMMCP_TEST_TOOLS"))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var msg mcp.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Method == "" || msg.ID == nil {
			continue // notification, no reply expected
		}

		switch msg.Method {
		case "initialize":
			reply(msg.ID, mcp.InitializeResult{
				ProtocolVersion: mcp.ProtocolVersion,
				ServerInfo:      mcp.EntityInfo{Name: "fake-mcp-server", Version: "test"},
			})
		case "tools/list":
			tools := make([]mcp.Tool, 0, len(toolNames))
			for _, name := range toolNames {
				tools = append(tools, mcp.Tool{Name: name})
			}
			reply(msg.ID, mcp.ToolsListResult{Tools: tools})
		case "tools/call":
			reply(msg.ID, mcp.ToolCallResult{Content: []mcp.ContentBlock{{Type: "text", Text: "ok"}}})
		case "shutdown":
			reply(msg.ID, struct{}{})
		}
	}
}

func reply(id json.RawMessage, result any) {
	raw, _ := json.Marshal(result)
	msg, _ := json.Marshal(mcp.Message{JSONRPC: "2.0", ID: id, Result: raw})
	fmt.Println(string(msg))
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
