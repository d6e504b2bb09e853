package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the codeflow banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.NewOutput(w).ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"                 _       __ _               ", "#38bdf8"},
		{"   ___ ___   __| | ___ / _| | _____      __", "#22d3ee"},
		{"  / __/ _ \\ / _` |/ _ \\ |_| |/ _ \\ \\ /\\ / /", "#2dd4bf"},
		{" | (_| (_) | (_| |  __/  _| | (_) \\ V  V / ", "#34d399"},
		{"  \\___\\___/ \\__,_|\\___|_| |_|\\___/ \\_/\\_/  ", "#4ade80"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
