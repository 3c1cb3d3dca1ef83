package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// The style follows the terminal background.
func NewRenderer(width int) (func(string) (string, error), error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}

// SpeechMarkdown formats a turn reply as markdown for terminal preview.
func SpeechMarkdown(route, speech, reprompt string, ends bool) string {
	var b strings.Builder
	if route != "" {
		fmt.Fprintf(&b, "### %s\n\n", route)
	}
	if speech == "" {
		b.WriteString("_(no speech)_\n")
	} else {
		fmt.Fprintf(&b, "> %s\n", speech)
	}
	if reprompt != "" {
		fmt.Fprintf(&b, "\n*Reprompt:* %s\n", reprompt)
	}
	if ends {
		b.WriteString("\n---\nSession ended.\n")
	}
	return b.String()
}
