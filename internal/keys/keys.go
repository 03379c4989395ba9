package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the notification inbox.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Inbox actions
	MarkRead    key.Binding
	MarkAllRead key.Binding
	Remove      key.Binding
	ClearAll    key.Binding

	// Manual refresh of every running poller, or of the open calendar
	Refresh key.Binding

	// Availability calendar
	Availability   key.Binding
	Book           key.Binding
	CancelBooking  key.Binding
	ChangeProvider key.Binding
	Back           key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "mark all read"),
		),
		Remove: key.NewBinding(
			key.WithKeys("d", "x"),
			key.WithHelp("d", "remove"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "clear all"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Availability: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "availability"),
		),
		Book: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "book slot"),
		),
		CancelBooking: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel booking"),
		),
		ChangeProvider: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "change provider"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.MarkRead, k.Remove, k.Help, k.Quit,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Quit},
		{k.MarkRead, k.MarkAllRead, k.Remove, k.ClearAll},
		{k.Availability, k.Book, k.CancelBooking, k.ChangeProvider, k.Back},
		{k.Refresh, k.Help},
	}
}
