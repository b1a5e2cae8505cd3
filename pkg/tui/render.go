package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/golemhq/golemmcp/pkg/mcp"
)

// RenderToolCatalogue renders a server's tools as markdown (name, glamour
// rendered description, argument names from the input schema's
// "properties") for the CLI `tools` command and the interactive shell's
// `tools` line command.
func RenderToolCatalogue(server string, tools []mcp.Tool) (string, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", server)
	if len(tools) == 0 {
		md.WriteString("_no tools discovered_\n")
	}
	for _, t := range tools {
		fmt.Fprintf(&md, "## %s\n\n", t.Name)
		if t.Description != "" {
			md.WriteString(t.Description)
			md.WriteString("\n\n")
		}
		if props, ok := t.InputSchema["properties"].(map[string]any); ok && len(props) > 0 {
			md.WriteString("**arguments:**\n\n")
			for key := range props {
				fmt.Fprintf(&md, "- `%s`\n", key)
			}
			md.WriteString("\n")
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(TerminalWidth()),
	)
	if err != nil {
		return "", fmt.Errorf("tui: new renderer: %w", err)
	}
	out, err := renderer.Render(md.String())
	if err != nil {
		return "", fmt.Errorf("tui: render: %w", err)
	}
	return out, nil
}
