package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/golemhq/golemmcp/pkg/tui"
)

// runShell runs the interactive REPL: call <tool> [json], tools, list,
// audit [server] as line commands against the same live stack the one-shot
// subcommands use.
func runShell(a *app) error {
	rl, err := readline.New("golemmcp> ")
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := dispatchShellLine(a, line); err != nil {
			if err == io.EOF {
				return nil
			}
			fmt.Println("error:", err)
		}
	}
}

func dispatchShellLine(a *app, line string) error {
	fields := strings.Fields(line)
	cmd, rest := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Println("commands: call <tool> [json]  tools [server]  list  audit [server]  quit")
		return nil
	case "quit", "exit":
		return io.EOF
	case "list":
		states := a.mgr.List()
		for _, s := range a.cache.ListServers() {
			fmt.Printf("%-20s %-10s %d tools\n", s.Config.Name, states[s.Config.Name], len(s.Tools))
		}
		return nil
	case "tools":
		all := a.cache.AllTools()
		for name, tools := range all {
			if len(rest) == 1 && rest[0] != name {
				continue
			}
			out, err := tui.RenderToolCatalogue(name, tools)
			if err != nil {
				return err
			}
			fmt.Println(out)
		}
		return nil
	case "audit":
		if len(rest) == 1 {
			for _, e := range a.auditLog.ForServer(rest[0]) {
				fmt.Printf("%s  %s/%s  %s\n", e.Timestamp.Format(time.RFC3339), e.Server, e.Tool, e.Outcome)
			}
			return nil
		}
		for _, e := range a.auditLog.Recent(20) {
			fmt.Printf("%s  %s/%s  %s\n", e.Timestamp.Format(time.RFC3339), e.Server, e.Tool, e.Outcome)
		}
		return nil
	case "call":
		if len(rest) == 0 {
			return fmt.Errorf("usage: call <tool> [json-args]")
		}
		var callArgs map[string]any
		if len(rest) > 1 {
			raw := strings.Join(rest[1:], " ")
			if err := json.Unmarshal([]byte(raw), &callArgs); err != nil {
				return fmt.Errorf("invalid json arguments: %w", err)
			}
		}
		result, err := a.router.Invoke(context.Background(), rest[0], callArgs, "")
		if err != nil {
			return err
		}
		for _, block := range result.Content {
			fmt.Println(block.Text)
		}
		return nil
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}
