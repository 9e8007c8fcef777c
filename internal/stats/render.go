package stats

import (
	"fmt"
	"strings"

	"newslens/internal/core"

	"github.com/charmbracelet/lipgloss"
)

const barWidth = 30

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sectionStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
	labelStyle   = lipgloss.NewStyle().Width(28)
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Render formats a dashboard for the terminal.
func Render(d *Dashboard) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("newslens dashboard"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(d.GeneratedAt.Format("2006-01-02 15:04 MST")))
	b.WriteString("\n")

	summary := fmt.Sprintf("Articles: %d\nStory groups: %d (largest %d)", d.TotalArticles, d.StoryGroups, d.LargestGroup)
	b.WriteString(boxStyle.Render(summary))
	b.WriteString("\n")

	sections := []struct {
		title  string
		counts []core.Count
	}{
		{"Categories", d.ByCategory},
		{"Sources", d.BySource},
		{"Sentiment", d.BySentiment},
		{"Triage status", d.ByTriage},
		{"Requires deep analysis", d.DeepFlags},
		{"Articles per day", d.PerDay},
		{"Top key claims", d.TopKeyClaims},
	}
	for _, s := range sections {
		b.WriteString(sectionStyle.Render(s.title))
		b.WriteString("\n")
		b.WriteString(Bars(s.counts))
	}
	return b.String()
}

// Bars renders counts as horizontal bars scaled to the largest count.
func Bars(counts []core.Count) string {
	if len(counts) == 0 {
		return mutedStyle.Render("  (none)") + "\n"
	}
	top := 0
	for _, c := range counts {
		if c.Count > top {
			top = c.Count
		}
	}

	var b strings.Builder
	for _, c := range counts {
		width := 0
		if top > 0 {
			width = c.Count * barWidth / top
		}
		if width == 0 && c.Count > 0 {
			width = 1
		}
		fmt.Fprintf(&b, "  %s %s %d\n",
			labelStyle.Render(truncate(c.Label, 26)),
			barStyle.Render(strings.Repeat("█", width)),
			c.Count)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
