package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/eldtechnologies/carebot/clients/go/carebot"
	"github.com/eldtechnologies/carebot/internal/markup"
)

// Palette
var (
	colorUser      = lipgloss.Color("#2196F3")
	colorAssistant = lipgloss.Color("#8BC34A")
	colorAlert     = lipgloss.Color("#e53935")
	colorWarning   = lipgloss.Color("#FFC107")
	colorMuted     = lipgloss.Color("#8a94a6")
)

type styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Heading   lipgloss.Style
	Alert     lipgloss.Style
	Bold      lipgloss.Style
	Emphasis  lipgloss.Style
	Muted     lipgloss.Style
	Failed    lipgloss.Style
	Pending   lipgloss.Style
	Body      lipgloss.Style
}

func newStyles() styles {
	return styles{
		User:      lipgloss.NewStyle().Foreground(colorUser).Bold(true),
		Assistant: lipgloss.NewStyle().Foreground(colorAssistant).Bold(true),
		Heading:   lipgloss.NewStyle().Bold(true).Underline(true),
		Alert:     lipgloss.NewStyle().Foreground(colorAlert).Bold(true),
		Bold:      lipgloss.NewStyle().Bold(true),
		Emphasis:  lipgloss.NewStyle().Italic(true),
		Muted:     lipgloss.NewStyle().Foreground(colorMuted),
		Failed:    lipgloss.NewStyle().Foreground(colorAlert),
		Pending:   lipgloss.NewStyle().Foreground(colorWarning),
		Body:      lipgloss.NewStyle().PaddingLeft(2),
	}
}

// renderMessage formats one conversation message for the terminal.
func (s styles) renderMessage(m carebot.Message) string {
	var header strings.Builder
	if m.Role == "user" {
		header.WriteString(s.User.Render("You"))
	} else {
		header.WriteString(s.Assistant.Render("Assistant"))
	}
	if !m.CreatedAt.IsZero() {
		header.WriteString(" " + s.Muted.Render(m.CreatedAt.Local().Format("15:04")))
	}
	switch m.Status {
	case "failed":
		header.WriteString(" " + s.Failed.Render("[failed]"))
	case "pending_offline":
		header.WriteString(" " + s.Pending.Render("[waiting for connection]"))
	}
	if m.Confidence != nil {
		header.WriteString(" " + s.Muted.Render(fmt.Sprintf("(confidence %.0f%%)", *m.Confidence*100)))
	}

	var body []string
	if m.Role == "user" {
		body = strings.Split(m.Content, "\n")
	} else {
		body = s.renderMarkup(m.Content)
	}
	return header.String() + "\n" + s.Body.Render(strings.Join(body, "\n"))
}

// renderMarkup renders assistant markup block by block.
func (s styles) renderMarkup(content string) []string {
	blocks := markup.Parse(content)
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case markup.Blank:
			lines = append(lines, "")
		case markup.Heading:
			lines = append(lines, s.Heading.Render(b.Text))
		case markup.Bullet:
			lines = append(lines, "• "+s.renderSpans(b.Spans))
		case markup.Alert:
			lines = append(lines, s.Alert.Render("! "+b.Text))
		default:
			lines = append(lines, s.renderSpans(b.Spans))
		}
	}
	return lines
}

func (s styles) renderSpans(spans []markup.Span) string {
	var b strings.Builder
	for _, sp := range spans {
		switch {
		case sp.Bold:
			b.WriteString(s.Bold.Render(sp.Text))
		case sp.Emphasis:
			b.WriteString(s.Emphasis.Render(sp.Text))
		default:
			b.WriteString(sp.Text)
		}
	}
	return b.String()
}
