package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RemoteOutput represents a box for displaying raw output from commands
// executed on the hub. Used in verbose mode to show exactly what the
// hub's shell reported.
type RemoteOutput struct {
	Title    string   // e.g., "Remote Output"
	Content  string   // The raw remote output
	Lines    []string // Parsed output lines (for filtering)
	Width    int      // Terminal width
	MaxLines int      // Maximum lines to display (0 = unlimited)
}

// NewRemoteOutput creates a new remote output box
func NewRemoteOutput(content string) *RemoteOutput {
	return &RemoteOutput{
		Title:    "Remote Output",
		Content:  content,
		Lines:    strings.Split(content, "\n"),
		Width:    GetTerminalWidth(),
		MaxLines: 0,
	}
}

// SetWidth sets the terminal width for responsive rendering
func (g *RemoteOutput) SetWidth(width int) *RemoteOutput {
	g.Width = width
	return g
}

// SetTitle sets a custom title for the box
func (g *RemoteOutput) SetTitle(title string) *RemoteOutput {
	g.Title = title
	return g
}

// SetMaxLines limits the number of lines displayed
func (g *RemoteOutput) SetMaxLines(max int) *RemoteOutput {
	g.MaxLines = max
	return g
}

// FilterLines filters the output to only show lines matching the given
// patterns. Useful for extracting specific output (e.g., digests, errors).
func (g *RemoteOutput) FilterLines(patterns ...string) *RemoteOutput {
	var filtered []string
	for _, line := range g.Lines {
		for _, pattern := range patterns {
			if strings.Contains(line, pattern) {
				filtered = append(filtered, line)
				break
			}
		}
	}
	g.Lines = filtered
	g.Content = strings.Join(filtered, "\n")
	return g
}

// Render returns the styled remote output box as a string
func (g *RemoteOutput) Render() string {
	width := g.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	// Apply max lines limit
	lines := g.Lines
	if g.MaxLines > 0 && len(lines) > g.MaxLines {
		lines = lines[:g.MaxLines]
		lines = append(lines, "... (output truncated)")
	}

	// Title styled
	titleStyled := RemoteOutputTitleStyle.Render(g.Title)

	// Content styled (preserve monospace formatting)
	contentStyled := RemoteOutputContentStyle.Render(strings.Join(lines, "\n"))

	// Combine title and content
	inner := lipgloss.JoinVertical(lipgloss.Left, titleStyled, "", contentStyled)

	// Box with muted border
	boxWidth := width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(boxWidth).
		Padding(0, 1).
		MarginLeft(2).
		Render(inner)
}

// String implements fmt.Stringer
func (g *RemoteOutput) String() string {
	return g.Render()
}

// RenderRemoteOutput renders a remote output box with the given content
func RenderRemoteOutput(content string) string {
	return NewRemoteOutput(content).Render()
}
