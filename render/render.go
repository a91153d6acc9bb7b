// Package render formats session views and transcripts for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/agentdeck/agentdeck/engine"
	"github.com/agentdeck/agentdeck/transcript"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	stepDoneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	stepFailedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	stepRunningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	thinkingStyle    = lipgloss.NewStyle().Faint(true).Italic(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	footerStyle      = lipgloss.NewStyle().Faint(true)
)

// Renderer formats views and documents. Markdown answers are rendered
// through glamour; everything else through lipgloss styles.
type Renderer struct {
	md    *glamour.TermRenderer
	width int
}

// New creates a renderer with the given wrap width and glamour style name
// ("dark", "light", "notty", or "" for auto).
func New(width int, style string) (*Renderer, error) {
	md, err := glamour.NewTermRenderer(
		glamourOption(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &Renderer{md: md, width: width}, nil
}

// View renders a live session view.
func (r *Renderer) View(v engine.SessionView) string {
	var b strings.Builder

	status := "streaming"
	if !v.IsStreaming {
		status = "finished"
		if v.Success != nil && !*v.Success {
			status = "failed"
		}
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("Session %s [%s] %s", v.SessionID, v.Format, status)))
	b.WriteString("\n")

	for _, step := range v.Steps {
		b.WriteString(renderStep(step))
		b.WriteString("\n")
	}
	if v.Thinking != "" {
		b.WriteString(thinkingStyle.Render(v.Thinking))
		b.WriteString("\n")
	}
	if v.Answer != "" {
		b.WriteString(r.markdown(v.Answer))
	}
	if v.Error != "" {
		b.WriteString(errorStyle.Render(v.Error))
		b.WriteString("\n")
	}
	if v.TokensUsed != nil {
		b.WriteString(footerStyle.Render(fmt.Sprintf("tokens used: %d", *v.TokensUsed)))
		b.WriteString("\n")
	}
	return b.String()
}

// Document renders a parsed transcript.
func (r *Renderer) Document(d transcript.Document) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("Agent: %s | Command: %s", d.Agent, d.Command)))
	b.WriteString("\n")
	for key, value := range d.Meta {
		b.WriteString(footerStyle.Render(fmt.Sprintf("%s: %s", key, value)))
		b.WriteString("\n")
	}
	for _, entry := range d.Working {
		b.WriteString(stepDoneStyle.Render("  ✓ " + entry))
		b.WriteString("\n")
	}
	if d.Thinking != "" {
		b.WriteString(thinkingStyle.Render(d.Thinking))
		b.WriteString("\n")
	}
	if d.Answer != "" {
		b.WriteString(r.markdown(d.Answer))
	}
	if d.Error != "" {
		b.WriteString(errorStyle.Render(d.Error))
		b.WriteString("\n")
	}
	if d.TokensUsed != nil {
		b.WriteString(footerStyle.Render(fmt.Sprintf("tokens used: %d", *d.TokensUsed)))
		b.WriteString("\n")
	}
	return b.String()
}

// markdown renders text through glamour, falling back to plain text when
// rendering fails.
func (r *Renderer) markdown(text string) string {
	out, err := r.md.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func renderStep(step engine.Step) string {
	label := step.Label
	if label == "" {
		label = step.ID
	}
	switch step.Status {
	case engine.StepCompleted:
		return stepDoneStyle.Render("  ✓ " + label)
	case engine.StepFailed:
		return stepFailedStyle.Render("  ✗ " + label)
	default:
		return stepRunningStyle.Render("  … " + label)
	}
}

func glamourOption(style string) glamour.TermRendererOption {
	switch style {
	case "dark", "light", "notty":
		return glamour.WithStandardStyle(style)
	default:
		return glamour.WithAutoStyle()
	}
}
