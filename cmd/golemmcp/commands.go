package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/golemhq/golemmcp/pkg/manifest"
	"github.com/golemhq/golemmcp/pkg/tui"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "golemmcp",
		Short:         "golemmcp — host-side MCP server supervisor and tool router",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newAddCmd(),
		newRemoveCmd(),
		newStartCmd(),
		newStopCmd(),
		newRestartCmd(),
		newListCmd(),
		newToolsCmd(),
		newCallCmd(),
		newAuditCmd(),
		newWatchCmd(),
		newTUICmd(),
		newShellCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the golemmcp version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(tui.Banner(version))
			return nil
		},
	}
}

func newAddCmd() *cobra.Command {
	var argsFlag []string
	var envFlag map[string]string
	cmd := &cobra.Command{
		Use:   "add <name> <command>",
		Short: "Register a new MCP server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			a.cache.AddServer(manifest.ServerConfig{
				Name:    args[0],
				Command: args[1],
				Args:    argsFlag,
				Env:     envFlag,
			})
			return a.save()
		},
	}
	cmd.Flags().StringSliceVar(&argsFlag, "arg", nil, "argument to pass to the server command (repeatable)")
	cmd.Flags().StringToStringVar(&envFlag, "env", nil, "KEY=value environment override (repeatable)")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a configured MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			_ = a.mgr.Stop(args[0])
			a.cache.RemoveServer(args[0])
			return a.save()
		},
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>",
		Short: "Start a configured MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.mgr.Start(context.Background(), args[0]); err != nil {
				return err
			}
			return a.save()
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a running MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return a.mgr.Stop(args[0])
		},
	}
}

func newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <name>",
		Short: "Restart a configured MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return a.mgr.Restart(context.Background(), args[0])
		},
	}
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured servers and their state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			states := a.mgr.List()
			for _, s := range a.cache.ListServers() {
				state, ok := states[s.Config.Name]
				if !ok {
					state = "stopped"
				}
				fmt.Printf("%-20s %-10s %d tools\n", s.Config.Name, state, len(s.Tools))
			}
			return nil
		},
	}
	return cmd
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools [server]",
		Short: "List discovered tools, optionally scoped to one server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			all := a.cache.AllTools()
			for name, tools := range all {
				if len(args) == 1 && args[0] != name {
					continue
				}
				out, err := tui.RenderToolCatalogue(name, tools)
				if err != nil {
					return err
				}
				fmt.Println(out)
			}
			return nil
		},
	}
}

func newCallCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "call <tool> [json-args]",
		Short: "Invoke a tool by qualified (server.tool) or unqualified name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			var callArgs map[string]any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &callArgs); err != nil {
					return fmt.Errorf("invalid json arguments: %w", err)
				}
			}
			result, err := a.router.Invoke(context.Background(), args[0], callArgs, scope)
			if err != nil {
				return err
			}
			for _, block := range result.Content {
				fmt.Println(block.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "permission scope to request for this call")
	return cmd
}

func newAuditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit [server]",
		Short: "Show recent audit entries, optionally scoped to one server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				for _, e := range a.auditLog.ForServer(args[0]) {
					fmt.Printf("%s  %s/%s  %s  %s\n", e.Timestamp.Format(time.RFC3339), e.Server, e.Tool, e.Outcome, e.Error)
				}
				return nil
			}
			for _, e := range a.auditLog.Recent(limit) {
				fmt.Printf("%s  %s/%s  %s  %s\n", e.Timestamp.Format(time.RFC3339), e.Server, e.Tool, e.Outcome, e.Error)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var cronExpr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically refresh the tool catalogue on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if !gronx.IsValid(cronExpr) {
				return fmt.Errorf("invalid cron expression: %s", cronExpr)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			expr := gronx.New()
			a.log.Info("watch: started", "cron", cronExpr)
			for {
				due, err := expr.IsDue(cronExpr)
				if err == nil && due {
					tools, err := a.router.ListAllTools(ctx)
					if err != nil {
						a.log.Warn("watch: refresh failed", "error", err)
					} else {
						a.log.Info("watch: refreshed", "servers", len(tools))
						_ = a.save()
					}
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Minute):
				}
			}
		},
	}
	cmd.Flags().StringVar(&cronExpr, "cron", "*/5 * * * *", "cron expression for the refresh schedule")
	return cmd
}

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch the live fleet dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return tui.Run(a.cache, a.mgr, a.auditLog)
		},
	}
}

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive REPL against the running fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			sessionID := uuid.NewString()
			fmt.Print(tui.Banner(version))
			fmt.Printf("session %s — type `help` for commands\n", sessionID)
			return runShell(a)
		},
	}
}
