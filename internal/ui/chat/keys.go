// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	PrevPage   key.Binding
	NextPage   key.Binding
	LastPage   key.Binding
	Submit     key.Binding
	NewConv    key.Binding
	Regenerate key.Binding
	History    key.Binding
	Delete     key.Binding
	Up         key.Binding
	Down       key.Binding
	Select     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PrevPage: key.NewBinding(
			key.WithKeys("pgup", "ctrl+p"),
			key.WithHelp("PgUp/C-p", "previous page"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+n"),
			key.WithHelp("PgDn/C-n", "next page"),
		),
		LastPage: key.NewBinding(
			key.WithKeys("end", "ctrl+e"),
			key.WithHelp("End/C-e", "last page"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		NewConv: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "new conversation"),
		),
		Regenerate: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "regenerate"),
		),
		History: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "history panel"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "delete conversation"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "move down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "open"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("C-h", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c/C-q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.PrevPage, k.NextPage, k.History, k.Quit}
}

// FullHelp returns all bindings, grouped.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevPage, k.NextPage, k.LastPage},
		{k.Submit, k.NewConv, k.Regenerate},
		{k.History, k.Delete, k.Help, k.Quit},
	}
}
