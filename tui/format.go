package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/poiesic/callscope/core"
)

var (
	toolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	queryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	userStyle    = lipgloss.NewStyle().Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	historyStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const ruleWidth = 50

// FormatAnswer renders an answer for a terminal: the tool used, the text,
// numbered sources, a positive confidence and the SQL that was executed.
func FormatAnswer(a *core.Answer) string {
	if a == nil {
		return ""
	}
	tool := string(a.Tool)
	if tool == "" {
		tool = "Unknown"
	}

	var b strings.Builder
	b.WriteString(toolStyle.Render("Tool Used: " + tool))
	b.WriteString("\n" + strings.Repeat("-", ruleWidth) + "\n")
	if a.Failed {
		b.WriteString(errorStyle.Render(a.Text))
	} else {
		b.WriteString("Answer:\n" + a.Text)
	}
	b.WriteString("\n")

	if len(a.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for i, src := range a.Sources {
			b.WriteString(sourceStyle.Render(fmt.Sprintf("   %d. %s", i+1, src)))
			b.WriteString("\n")
		}
	}
	if a.Confidence != nil && *a.Confidence > 0 {
		fmt.Fprintf(&b, "\nConfidence: %.2f\n", *a.Confidence)
	}
	if a.Query != "" {
		b.WriteString("\n" + queryStyle.Render("SQL Query: "+a.Query) + "\n")
	}
	return b.String()
}

// IsQuit reports whether input ends an interactive session.
func IsQuit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "quit", "exit", "q":
		return true
	}
	return false
}
