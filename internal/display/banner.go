package display

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

const bannerArt = `     _   _ _       _
 ___| |_(_) |_ ___| |__
/ __| __| | __/ __| '_ \
\__ \ |_| | || (__| | | |
|___/\__|_|\__\___|_| |_|`

// PrintBanner prints the ASCII art banner; magenta when colored.
func PrintBanner(w io.Writer, colored bool) {
	art := bannerArt
	if colored {
		art = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")).Render(art)
	}
	fmt.Fprintln(w, art)
}
