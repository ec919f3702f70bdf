package tui

import (
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// NewRenderer returns a function that renders markdown using glamour.
// When color is false, or the terminal has no color support, the notty style is used.
func NewRenderer(color bool, width int) (func(string) (string, error), error) {
	style := glamour.WithStandardStyle("notty")
	if color && termenv.ColorProfile() != termenv.Ascii {
		if termenv.HasDarkBackground() {
			style = glamour.WithStandardStyle("dark")
		} else {
			style = glamour.WithStandardStyle("light")
		}
	}

	opts := []glamour.TermRendererOption{style}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}
