// Package permission implements the Security Gate's rule evaluation
// (spec.md §4.5): given a requested server, tool, and scope, decide whether
// the router may dispatch the call.
//
// Rule matching follows the precedence devopsclaw's rbac Enforcer uses for
// permission strings (exact match beats glob beats catch-all), adapted here
// to per-server tool-name rules plus an optional scope set.
package permission

import (
	"errors"
	"path/filepath"
)

// ErrDenied is returned when no rule grants the requested call.
var ErrDenied = errors.New("permission: denied")

// Rule grants access to tools matching Pattern on Server (or on every server
// when Server is "*"). When Scopes is non-empty, a call that requests a scope
// must request one of Scopes; a call that requests no scope is not restricted
// by Scopes.
type Rule struct {
	Server  string   // exact server name, or "*" for any server
	Pattern string   // exact tool name, glob (filepath.Match syntax), or "*"
	Scopes  []string // empty means "no scope restriction"
}

// Guard evaluates a fixed rule set against requested calls.
type Guard struct {
	rules []Rule
}

// New constructs a Guard from a rule set. Rules are evaluated in the order
// exact name match, glob match, catch-all ("*"), regardless of the order
// they were supplied in.
func New(rules []Rule) *Guard {
	return &Guard{rules: rules}
}

// Check reports whether a call to server/tool, requesting the given scope
// (empty string means "no scope requested"), is permitted by any rule. An
// empty rule set permits every call: permission is opt-in only once a rule
// file has actually been configured.
func (g *Guard) Check(server, tool, scope string) error {
	if len(g.rules) == 0 {
		return nil
	}
	if rule, ok := g.matchExact(server, tool); ok {
		return g.checkScope(rule, scope)
	}
	if rule, ok := g.matchGlob(server, tool); ok {
		return g.checkScope(rule, scope)
	}
	if rule, ok := g.matchCatchAll(server, tool); ok {
		return g.checkScope(rule, scope)
	}
	return ErrDenied
}

func (g *Guard) matchExact(server, tool string) (Rule, bool) {
	for _, r := range g.rules {
		if (r.Server == server || r.Server == "*") && r.Pattern == tool {
			return r, true
		}
	}
	return Rule{}, false
}

func (g *Guard) matchGlob(server, tool string) (Rule, bool) {
	for _, r := range g.rules {
		if r.Pattern == "*" || r.Pattern == tool {
			continue // exact/catch-all handled by their own passes
		}
		if (r.Server == server || r.Server == "*") && globMatch(r.Pattern, tool) {
			return r, true
		}
	}
	return Rule{}, false
}

func (g *Guard) matchCatchAll(server, tool string) (Rule, bool) {
	for _, r := range g.rules {
		if r.Pattern == "*" && (r.Server == server || r.Server == "*") {
			return r, true
		}
	}
	return Rule{}, false
}

func (g *Guard) checkScope(rule Rule, scope string) error {
	if len(rule.Scopes) == 0 || scope == "" {
		return nil
	}
	for _, s := range rule.Scopes {
		if s == scope {
			return nil
		}
	}
	return ErrDenied
}

func globMatch(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}
