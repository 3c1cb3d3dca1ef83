package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	" _                        _   _ _",
	"| |_ _   _ _ __ _ __  ___| |_(_) | ___",
	"| __| | | | '__| '_ \\/ __| __| | |/ _ \\",
	"| |_| |_| | |  | | | \\__ \\ |_| | |  __/",
	" \\__|\\__,_|_|  |_| |_|___/\\__|_|_|\\___|",
}

var bannerColors = []string{"#0ea5e9", "#06b6d4", "#14b8a6", "#10b981", "#22c55e"}

// PrintBanner writes the turnstile banner and version to w.
// Colors degrade to plain text when w is not a color terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(p.Color(bannerColors[i])))
	}
	fmt.Fprintln(w, out.String("  version "+version).Faint())
	fmt.Fprintln(w)
}
