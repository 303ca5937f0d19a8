package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/spiral-recap/internal/recap"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	bodyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	sealStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#F7B801"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// RenderBootstrap draws the resume anchors of a document as a bordered card.
func RenderBootstrap(b recap.Bootstrap) string {
	head := titleStyle.Render("⬡ BOOTSTRAP · " + fallback(b.Title, "Untitled"))
	intro := bodyStyle.Render("You are resuming a previous conversation with these continuity anchors:")
	lines := b.Lines()
	lines[2] = sealStyle.Render(lines[2])
	anchors := bodyStyle.Render(strings.Join(lines[:2], "\n")) + "\n" + lines[2] + "\n" + bodyStyle.Render(lines[3])
	closing := hintStyle.Render(recap.Closing)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, head, "", intro, anchors, "", closing))
}

// Success formats a completion line.
func Success(format string, args ...any) string {
	return okStyle.Render("✓ ") + fmt.Sprintf(format, args...)
}

// Warning formats a non-fatal notice.
func Warning(format string, args ...any) string {
	return warnStyle.Render("! ") + fmt.Sprintf(format, args...)
}

// Failure formats an error line.
func Failure(format string, args ...any) string {
	return errStyle.Render("✗ ") + fmt.Sprintf(format, args...)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
