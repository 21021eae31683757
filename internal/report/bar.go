package report

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
)

// ScoreBar displays a score against its pass mark.
type ScoreBar struct {
	Label   string
	Percent int // 0..100
	Mark    int // pass mark, 0..100
	Width   int
}

// View renders the bar. The filled part is green at or above the mark and
// red below it.
func (b ScoreBar) View() string {
	var result string

	if b.Label != "" {
		result += labelStyle.Render(b.Label) + " "
	}

	barWidth := b.Width - lipgloss.Width(result) - 6 // "  100%"
	if barWidth < 4 {
		barWidth = 4
	}

	pct := min(max(b.Percent, 0), 100)
	filled := barWidth * pct / 100
	empty := barWidth - filled

	color := Success
	if pct < b.Mark {
		color = Error
	}

	result += lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	result += lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("░", empty))
	result += dimStyle.Render(fmt.Sprintf(" %4d%%", pct))
	return result
}
