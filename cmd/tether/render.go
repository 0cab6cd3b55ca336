package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/tether/pkg/chats/message"
	"github.com/germanamz/tether/pkg/chats/role"
	"github.com/germanamz/tether/pkg/chats/turn"
	"github.com/germanamz/tether/pkg/modeladapter/usage"
	"github.com/germanamz/tether/pkg/models"
	"github.com/mattn/go-runewidth"
)

var (
	userPrefixStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")) // blue
	answerPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	answerBlockStyle  = lipgloss.NewStyle().PaddingLeft(1)
	toolNameStyle     = lipgloss.NewStyle().Bold(true)
	toolResultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	toolErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	spinnerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // magenta

	errorBlockStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("1"))

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("1"))
)

const defaultWidth = 100

// mdRenderer renders markdown to terminal-formatted output.
var mdRenderer *glamour.TermRenderer

func initMarkdownRenderer(width int) {
	if width <= 0 {
		width = defaultWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return
	}
	mdRenderer = r
}

// renderMarkdown converts markdown text to terminal-formatted output.
func renderMarkdown(text string) string {
	if mdRenderer == nil {
		return text
	}
	out, err := mdRenderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// truncateWidth shortens s to at most width terminal cells, appending "..."
// when it had to cut. Newlines become spaces for single-line display.
func truncateWidth(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width <= 0 {
		width = defaultWidth
	}
	return runewidth.Truncate(s, width, "...")
}

// renderMessage formats one session message for the terminal scrollback.
func renderMessage(m message.Message, width int) string {
	if width <= 0 {
		width = defaultWidth
	}

	switch m.Role {
	case role.User:
		line := userPrefixStyle.Render("you > ") + m.Content
		if m.Image != nil {
			line += dimStyle.Render(fmt.Sprintf(" [%s, %s]", m.Image.MediaType, fmtBytes(m.Image.Size())))
		}
		return line

	case role.Assistant:
		return answerPrefixStyle.Render("model > ") + "\n" + answerBlockStyle.Render(renderMarkdown(m.Content))

	case role.Tool:
		name := toolNameStyle.Render("⚙ " + m.Tool)
		room := width - runewidth.StringWidth(m.Tool) - 3
		return name + " " + toolResultStyle.Render(truncateWidth(m.Content, room))

	case role.Error:
		text := "error: " + m.Content
		if m.Tool != "" {
			text = fmt.Sprintf("error (%s): %s", m.Tool, m.Content)
		}
		return errorBlockStyle.Render(toolErrorStyle.Render(text))

	default:
		return dimStyle.Render(m.Content)
	}
}

// renderModels lists the registry, marking the active and recommended models.
func renderModels(reg *models.Registry, active string) string {
	var sb strings.Builder
	sb.WriteString("Models:\n")
	for _, m := range reg.List() {
		marker := "  "
		if m.ID == active {
			marker = "* "
		}
		sb.WriteString(marker)
		sb.WriteString(toolNameStyle.Render(m.ID))
		if m.Name != "" {
			sb.WriteString("  " + m.Name)
		}
		var notes []string
		if m.Speed != "" {
			notes = append(notes, m.Speed)
		}
		if m.Recommended {
			notes = append(notes, "recommended")
		}
		if len(notes) > 0 {
			sb.WriteString(dimStyle.Render(" (" + strings.Join(notes, ", ") + ")"))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderHistory prints the conversation turns one per line.
func renderHistory(turns []turn.Turn, width int) string {
	if len(turns) == 0 {
		return dimStyle.Render("The conversation is empty.")
	}

	lines := make([]string, 0, len(turns))
	for i, t := range turns {
		prefix := fmt.Sprintf("%2d %-5s ", i+1, t.Role)
		text := t.TextContent()
		for _, fc := range t.FunctionCalls() {
			text = strings.TrimSpace(text + " → " + fc.Name)
		}
		lines = append(lines, dimStyle.Render(prefix)+truncateWidth(text, width-len(prefix)))
	}
	return strings.Join(lines, "\n")
}

// renderUsage summarises token usage per model.
func renderUsage(t *usage.Tracker) string {
	if t == nil || t.Count() == 0 {
		return dimStyle.Render("No token usage recorded.")
	}

	var sb strings.Builder
	for _, tc := range t.ByModel() {
		fmt.Fprintf(&sb, "%s  ↑%s ↓%s\n", tc.Model, fmtTokens(tc.InputTokens), fmtTokens(tc.OutputTokens))
	}
	total := t.Total()
	fmt.Fprintf(&sb, "total  ↑%s ↓%s over %d call(s)", fmtTokens(total.InputTokens), fmtTokens(total.OutputTokens), t.Count())
	return sb.String()
}

// fmtTokens formats a token count for display, using k/M suffixes.
func fmtTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// fmtBytes formats a payload size for display.
func fmtBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fkB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

// fmtDuration formats a duration for display.
func fmtDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", mins, sec)
}
