package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bookingwatch/internal/theme"
)

// Layout manages the header, content and status bar dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with one-line header and status bar.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the height left for the main content area.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the title on the left and the unread badge on the
// right.
func (l Layout) RenderHeader(title, badge string) string {
	return l.bar(theme.HeaderStyle, title, badge)
}

// RenderStatusBar renders poll status on the left and key hints on the
// right.
func (l Layout) RenderStatusBar(status, hints string) string {
	return l.bar(theme.StatusBarStyle, status, hints)
}

// Compose joins header, content and status bar.
func (l Layout) Compose(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (l Layout) bar(style lipgloss.Style, left, right string) string {
	leftRendered := style.Render(left)
	rightRendered := style.Render(right)

	gap := l.Width - lipgloss.Width(leftRendered) - lipgloss.Width(rightRendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, leftRendered, filler, rightRendered)
}
