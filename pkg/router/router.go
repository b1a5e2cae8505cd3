// Package router implements the Tool Router (spec.md §4.9): resolving a
// tool reference against the manifest, checking it against the permission
// guard, dispatching through the manager's live client, and recording the
// outcome to the audit log.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golemhq/golemmcp/pkg/audit"
	"github.com/golemhq/golemmcp/pkg/manager"
	"github.com/golemhq/golemmcp/pkg/manifest"
	"github.com/golemhq/golemmcp/pkg/mcp"
	"github.com/golemhq/golemmcp/pkg/permission"
)

// Errors returned by the router (spec.md §7, Router*).
var (
	// ErrToolNotFound covers an unknown tool reference. An unqualified name
	// matching more than one server resolves to the first server added to
	// the manifest rather than failing.
	ErrToolNotFound     = errors.New("router: tool not found")
	ErrPermissionDenied = errors.New("router: permission denied")
	ErrServerNotRunning = errors.New("router: server not running")
)

// Router ties the manifest, permission guard, manager, and audit log
// together behind a single Invoke entry point.
type Router struct {
	cache   *manifest.Cache
	guard   *permission.Guard
	mgr     *manager.Manager
	auditLog *audit.Log
	timeout time.Duration
}

// New constructs a Router. timeout bounds each tool call.
func New(cache *manifest.Cache, guard *permission.Guard, mgr *manager.Manager, auditLog *audit.Log, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Router{cache: cache, guard: guard, mgr: mgr, auditLog: auditLog, timeout: timeout}
}

// Invoke resolves ref (qualified "server.tool" or unqualified "tool"),
// checks permission, and dispatches the call to the server's live client,
// recording an audit entry for every resolved reference (denial,
// server-not-running error, success, or tool error). A reference that does
// not resolve fails with ErrToolNotFound and is not audited.
func (r *Router) Invoke(ctx context.Context, ref string, args map[string]any, scope string) (*mcp.ToolCallResult, error) {
	server, tool, err := r.cache.FindTool(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, ref)
	}

	if err := r.guard.Check(server, tool.Name, scope); err != nil {
		if r.auditLog != nil {
			r.auditLog.LogDenial(server, tool.Name, args, err.Error())
		}
		return nil, fmt.Errorf("%w: %s.%s", ErrPermissionDenied, server, tool.Name)
	}

	c, err := r.mgr.GetClient(server)
	if err != nil {
		if r.auditLog != nil {
			r.auditLog.LogInvocation(server, tool.Name, args, audit.OutcomeError, err.Error(), 0)
		}
		return nil, fmt.Errorf("%w: %s", ErrServerNotRunning, server)
	}

	start := time.Now()
	result, err := c.CallTool(ctx, tool.Name, args, r.timeout)
	duration := time.Since(start)

	if err != nil {
		if r.auditLog != nil {
			r.auditLog.LogInvocation(server, tool.Name, args, audit.OutcomeError, err.Error(), duration)
		}
		return nil, err
	}

	outcome := audit.OutcomeSuccess
	errMsg := ""
	if result.IsError {
		outcome = audit.OutcomeError
		errMsg = "tool reported isError"
	}
	if r.auditLog != nil {
		r.auditLog.LogInvocation(server, tool.Name, args, outcome, errMsg, duration)
	}
	return result, nil
}

// ListAllTools refreshes the cached tool list of every running server, then
// returns the cached tool lists of every configured server, keyed by server
// name. A server that is not running, or whose listing fails, keeps its
// previously cached list.
func (r *Router) ListAllTools(ctx context.Context) (map[string][]mcp.Tool, error) {
	for name, state := range r.mgr.List() {
		if state != manager.StateRunning {
			continue
		}
		c, err := r.mgr.GetClient(name)
		if err != nil {
			continue
		}
		tools, err := c.ListTools(ctx, true, r.timeout)
		if err != nil {
			continue
		}
		_ = r.cache.UpdateTools(name, tools, time.Now())
	}
	return r.cache.AllTools(), nil
}
