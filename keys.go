package main

import "github.com/charmbracelet/bubbles/key"

// keyMap lists every binding of the player; it also feeds the help view
type keyMap struct {
	Toggle     key.Binding
	Next       key.Binding
	Prev       key.Binding
	SeekBack   key.Binding
	SeekFwd    key.Binding
	VolumeDown key.Binding
	VolumeUp   key.Binding
	CursorUp   key.Binding
	CursorDown key.Binding
	Select     key.Binding
	Artwork    key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Toggle:     key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space/p", "play/pause")),
		Next:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		Prev:       key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "previous")),
		SeekBack:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "rewind")),
		SeekFwd:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "forward")),
		VolumeDown: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "volume down")),
		VolumeUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		CursorUp:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "up")),
		CursorDown: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "down")),
		Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter/1-9", "play track")),
		Artwork:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle art")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Next, k.Prev, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Next, k.Prev, k.Select},
		{k.SeekBack, k.SeekFwd, k.VolumeDown, k.VolumeUp},
		{k.CursorUp, k.CursorDown, k.Artwork, k.Help, k.Quit},
	}
}
