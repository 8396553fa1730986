package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the board.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Refresh    key.Binding
	WakeUp     key.Binding

	// Navigation
	Left   key.Binding
	Right  key.Binding
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Board actions
	MoveLeft  key.Binding
	MoveRight key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh board"),
		),
		WakeUp: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "Wake backend"),
		),

		Left: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/left", "Previous column"),
		),
		Right: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/right", "Next column"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "First card"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Last card"),
		),

		MoveLeft: key.NewBinding(
			key.WithKeys("H", "shift+left", "<"),
			key.WithHelp("H/<", "Move card to previous stage"),
		),
		MoveRight: key.NewBinding(
			key.WithKeys("L", "shift+right", ">"),
			key.WithHelp("L/>", "Move card to next stage"),
		),
	}
}

// ShortHelp returns key bindings for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MoveLeft, k.MoveRight, k.Refresh, k.WakeUp, k.Help, k.Quit}
}

// FullHelp returns key bindings for the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down, k.Top, k.Bottom},
		{k.MoveLeft, k.MoveRight},
		{k.Refresh, k.WakeUp, k.CycleTheme, k.Help, k.Quit},
	}
}
