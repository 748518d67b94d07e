package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`                _         _                 `, "#34d399"},
	{` __ __  ___  (_) __  ___ | | ___  ___  _ __ `, "#2dd4bf"},
	{` \ V / / _ \ | |/ _|/ -_)| |/ _ \/ _ \| '_ \`, "#22d3ee"},
	{`  \_/  \___/ |_|\__|\___||_|\___/\___/| .__/`, "#38bdf8"},
	{`                                      |_|   `, "#60a5fa"},
}

// PrintBanner writes the voiceloop banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(out.Color(line.color)))
	}
	fmt.Fprintln(w, out.String("  spoken dialogue controller "+version).Faint())
	fmt.Fprintln(w)
}
