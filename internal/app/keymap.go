package app

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the bindings handled in handleKey.
type keyMap struct {
	Toggle  key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Toggle: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("Space", "Listen"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("x", "esc"),
		key.WithHelp("x", "Dismiss"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "Q", "ctrl+c"),
		key.WithHelp("q", "Quit"),
	),
}
