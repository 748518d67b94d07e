package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// An empty style detects the terminal background.
func NewRenderer(style string, width int) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if style != "" {
		opts = []glamour.TermRendererOption{glamour.WithStandardStyle(style)}
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	return r.Render, nil
}

// Transcript writes the conversation of a snapshot as Markdown.
func Transcript(s *domain.State) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Session %s\n\n", s.SessionID)
	fmt.Fprintf(&sb, "- **Variant:** %s\n", s.Variant)
	fmt.Fprintf(&sb, "- **State:** `%s`\n", s.Path())
	fmt.Fprintf(&sb, "- **Cycle:** %d\n", s.Cycle)
	if s.Context.SilenceCount > 0 {
		fmt.Fprintf(&sb, "- **Silences:** %d\n", s.Context.SilenceCount)
	}

	sb.WriteString("\n## Conversation\n\n")
	if len(s.Context.History) == 0 {
		sb.WriteString("_Nothing was said._\n")
	}
	for _, m := range s.Context.History {
		fmt.Fprintf(&sb, "**%s:** %s\n\n", speaker(m.Role), m.Content)
	}

	if len(s.Context.PendingItems) > 0 {
		sb.WriteString("\n## Order\n\n| Field | Value |\n|---|---|\n")
		for _, item := range s.Context.PendingItems {
			fmt.Fprintf(&sb, "| %s | %s |\n", item.Field, item.Value)
		}
	}
	return sb.String()
}

func speaker(role domain.Role) string {
	switch role {
	case domain.RoleUser:
		return "Caller"
	case domain.RoleAssistant:
		return "Agent"
	default:
		return "System"
	}
}
