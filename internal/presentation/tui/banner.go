package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the ResScene banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  ___          ___                 ", "#818cf8"},
		{" | _ \\___ ___ / __| __ ___ _ _  ___ ", "#a78bfa"},
		{" |   / -_|_-< \\__ \\/ _/ -_) ' \\/ -_)", "#e879f9"},
		{" |_|_\\___/__/ |___/\\__\\___|_||_\\___|", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
