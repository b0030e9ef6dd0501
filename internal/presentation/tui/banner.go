package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the ivrflow ASCII art banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{" _            __ _               ", "#818cf8"},
		{"(_)_   ___ __/ _| | _____      __", "#a78bfa"},
		{"| \\ \\ / / '__| |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
		{"| |\\ V /| |  |  _| | (_) \\ V  V / ", "#e879f9"},
		{"|_| \\_/ |_|  |_| |_|\\___/ \\_/\\_/  ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
