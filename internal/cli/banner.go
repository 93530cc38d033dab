package cli

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the colloquy banner. Colors are dropped when w is not a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	lines := []struct{ text, color string }{
		{`   ___      _ _                         `, "#818cf8"},
		{`  / __\___ | | | ___   __ _ _   _ _   _ `, "#a78bfa"},
		{` / /  / _ \| | |/ _ \ / _' | | | | | | |`, "#c084fc"},
		{`/ /__| (_) | | | (_) | (_| | |_| | |_| |`, "#e879f9"},
		{`\____/\___/|_|_|\___/ \__, |\__,_|\__, |`, "#f472b6"},
		{`                         |_|      |___/ `, "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintf(w, "%s\n\n", out.String("  v"+version).Faint())
}
