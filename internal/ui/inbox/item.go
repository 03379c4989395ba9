package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/theme"
)

// Item wraps a notification so it can be used in a bubbles/list.
type Item struct {
	N model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.N.Title + " " + i.N.Message }

// Title returns the notification title.
func (i Item) Title() string { return i.N.Title }

// Description returns the notification message.
func (i Item) Description() string { return i.N.Message }

// Delegate implements list.ItemDelegate for notifications. Each item
// takes two lines: a badge with title and age, then the message.
type Delegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 1 }

// Update handles per-item messages (unused).
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws one notification.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.N

	marker := " "
	title := theme.DimmedStyle.Render(n.Title)
	if !n.IsRead {
		marker = "●"
		title = theme.UnreadTitleStyle.Render(n.Title)
	}

	badge := theme.TypeStyle(n.Type).Render(typeLabel(n.Type))
	age := theme.DimmedStyle.Render(relativeTime(n.CreatedAt, d.clock()))

	first := fmt.Sprintf("%s %s %s  %s", marker, badge, title, age)
	second := "  " + n.Message
	if n.IsRead {
		second = theme.DimmedStyle.Render(second)
	}

	style := theme.ListItemStyle
	if index == m.Index() {
		style = theme.SelectedItemStyle
	}
	fmt.Fprint(w, style.Render(first+"\n"+second))
}

func (d Delegate) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// typeLabel turns NEW_BOOKING_REQUEST into "new booking request".
func typeLabel(t model.NotificationType) string {
	return strings.ToLower(strings.ReplaceAll(string(t), "_", " "))
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
