package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the dashboard.
type keyMap struct {
	failures key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		failures: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "failures")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.failures, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.failures, k.quit}}
}
