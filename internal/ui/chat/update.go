// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/termforge/termchat/internal/ui/styles"
)

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.transcriptWidth() - 6
		m.rebuildRenderer()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case RefreshMsg:
		// Shared state already changed; the re-render picks it up.
		return m, nil

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		m.theme = styles.NewTheme(m.cfg.UI.Theme)
		m.spin.Style = m.theme.Spinner
		m.rebuildRenderer()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateInput(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.History):
		if m.focus == focusInput {
			m.focus = focusHistory
			m.histSel = m.selectedHistoryIndex()
			m.input.Blur()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return m, nil
	}

	if m.focus == focusHistory {
		return m.handleHistoryKey(msg)
	}
	return m.handleChatKey(msg)
}

// handleChatKey handles keys while the input line has focus.
func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.PrevPage):
		m.ctrl.Navigate(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		m.ctrl.Navigate(1)
		return m, nil

	case key.Matches(msg, m.keys.LastPage):
		m.ctrl.NavigateEnd()
		return m, nil

	case key.Matches(msg, m.keys.NewConv):
		m.ctrl.NewConversation()
		m.input.Reset()
		return m, nil

	case key.Matches(msg, m.keys.Regenerate):
		m.ctrl.Regenerate()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.visiblePending() {
			// Input is locked while the visible turn streams.
			return m, nil
		}
		if m.ctrl.Submit(m.input.Value()) {
			m.input.Reset()
		}
		return m, nil
	}

	return m.updateInput(msg)
}

// handleHistoryKey handles keys while the history panel has focus.
func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := 1 + len(m.ctrl.Conversations())

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.histSel > 0 {
			m.histSel--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.histSel < entries-1 {
			m.histSel++
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if id := m.historyIDAt(m.histSel); id != "" {
			m.ctrl.Delete(id)
			if m.histSel >= 1+len(m.ctrl.Conversations()) {
				m.histSel = 0
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.histSel == 0 {
			m.ctrl.NewConversation()
		} else if id := m.historyIDAt(m.histSel); id != "" {
			m.ctrl.SwitchConversation(id)
		}
		m.focus = focusInput
		m.input.Focus()
		return m, nil
	}

	return m, nil
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// historyIDAt maps a panel row to a conversation id. Row 0 is the "new
// conversation" entry; rows below it list conversations newest-first.
func (m Model) historyIDAt(row int) string {
	convs := m.ctrl.Conversations()
	idx := len(convs) - row // row 1 -> last (newest)
	if row < 1 || idx < 0 || idx >= len(convs) {
		return ""
	}
	return convs[idx].ID
}

// selectedHistoryIndex returns the panel row of the current conversation.
func (m Model) selectedHistoryIndex() int {
	convs := m.ctrl.Conversations()
	current := m.ctrl.CurrentID()
	for i, conv := range convs {
		if conv.ID == current {
			return len(convs) - i
		}
	}
	return 0
}
