package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/golemhq/golemmcp/pkg/audit"
	"github.com/golemhq/golemmcp/pkg/manager"
	"github.com/golemhq/golemmcp/pkg/manifest"
)

type tickMsg time.Time

type snapshotMsg struct {
	servers []manifest.ServerEntry
	states  map[string]manager.State
	recent  []audit.Entry
}

// Dashboard is the bubbletea model for the live fleet view: a table of
// servers (state, tool count, last discovery) and a tail of recent audit
// entries. It shows tool counts only, not the tools themselves. It is
// read-only — it never calls router.Invoke.
type Dashboard struct {
	cache    *manifest.Cache
	mgr      *manager.Manager
	auditLog *audit.Log

	servers  []manifest.ServerEntry
	states   map[string]manager.State
	recent   []audit.Entry

	width, height int
	quitting      bool
}

// NewDashboard constructs a Dashboard over the given live components.
func NewDashboard(cache *manifest.Cache, mgr *manager.Manager, auditLog *audit.Log) Dashboard {
	return Dashboard{cache: cache, mgr: mgr, auditLog: auditLog, width: 80, height: 24}
}

func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(m.fetch, tickCmd())
}

func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.fetch
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tickMsg:
		return m, tea.Batch(m.fetch, tickCmd())
	case snapshotMsg:
		m.servers = msg.servers
		m.states = msg.states
		m.recent = msg.recent
	}
	return m, nil
}

func (m Dashboard) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(PrimaryText.Render("golem-mcp fleet"))
	b.WriteString("\n\n")

	if len(m.servers) == 0 {
		b.WriteString(FooterStyle.Render("  no servers configured — use `golemmcp add`"))
		b.WriteString("\n")
	} else {
		header := fmt.Sprintf("%-20s %-10s %-6s %s", "SERVER", "STATE", "TOOLS", "LAST DISCOVERED")
		b.WriteString(MutedText.Render(header))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("─", clampInt(m.width, 70)))
		b.WriteString("\n")

		for _, s := range m.servers {
			state := m.states[s.Config.Name]
			row := fmt.Sprintf("%-20s %-10s %-6d %s",
				s.Config.Name,
				renderState(state),
				len(s.Tools),
				renderLastDiscovered(s.LastDiscovered),
			)
			b.WriteString(row)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(PrimaryText.Render("recent activity"))
	b.WriteString("\n")
	if len(m.recent) == 0 {
		b.WriteString(FooterStyle.Render("  (none yet)"))
		b.WriteString("\n")
	} else {
		for _, e := range m.recent {
			b.WriteString(renderAuditLine(e))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(FooterStyle.Render(fmt.Sprintf("[r] refresh  [q] quit  │  %s", time.Now().Format("15:04:05"))))
	return b.String()
}

func renderState(s manager.State) string {
	switch s {
	case manager.StateRunning:
		return OKText.Render("● running")
	case manager.StateStarting:
		return WarnText.Render("◐ starting")
	case manager.StateError:
		return ErrorText.Render("✗ error")
	default:
		return PanelText.Render("○ stopped")
	}
}

func renderLastDiscovered(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

func renderAuditLine(e audit.Entry) string {
	style := NormalText
	switch e.Outcome {
	case audit.OutcomeDenied:
		style = WarnText
	case audit.OutcomeError:
		style = ErrorText
	}
	return style.Render(fmt.Sprintf("  %s  %s/%s  %s", e.Timestamp.Format("15:04:05"), e.Server, e.Tool, e.Outcome))
}

func clampInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func tickCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Dashboard) fetch() tea.Msg {
	return snapshotMsg{
		servers: m.cache.ListServers(),
		states:  m.mgr.List(),
		recent:  m.auditLog.Recent(20),
	}
}

// Run starts the bubbletea program for the dashboard.
func Run(cache *manifest.Cache, mgr *manager.Manager, auditLog *audit.Log) error {
	p := tea.NewProgram(NewDashboard(cache, mgr, auditLog), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
