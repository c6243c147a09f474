// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main screen of the termchat TUI: the paginated
// transcript, the conversation history panel, and the input line.
package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/termforge/termchat/internal/config"
	"github.com/termforge/termchat/internal/controller"
	"github.com/termforge/termchat/internal/ui/styles"
)

// =============================================================================
// FOCUS ZONES
// =============================================================================

type focusZone int

const (
	focusInput focusZone = iota
	focusHistory
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctrl *controller.Controller
	cfg  *config.Config

	theme *styles.Theme
	keys  KeyMap

	width  int
	height int

	input    textinput.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	focus    focusZone
	histSel  int // 0 = "new conversation", then conversations newest-first
	showHelp bool
}

// New creates the chat screen model.
func New(ctrl *controller.Controller, cfg *config.Config) Model {
	theme := styles.NewTheme(cfg.UI.Theme)

	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.CharLimit = 4096
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = theme.Spinner

	return Model{
		ctrl:  ctrl,
		cfg:   cfg,
		theme: theme,
		keys:  DefaultKeyMap(),
		input: input,
		spin:  spin,
	}
}

// Init starts the spinner tick.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// transcriptWidth returns the width available for the transcript column.
func (m Model) transcriptWidth() int {
	w := m.width - m.historyWidth()
	if w < 20 {
		w = 20
	}
	return w
}

// historyWidth returns the width of the history panel, zero when the
// terminal is too narrow for it.
func (m Model) historyWidth() int {
	if m.width < 60 {
		return 0
	}
	return m.cfg.UI.HistoryWidth
}

// rebuildRenderer recreates the markdown renderer for the current width and
// theme. A nil renderer falls back to raw text.
func (m *Model) rebuildRenderer() {
	if !m.cfg.UI.Markdown {
		m.renderer = nil
		return
	}
	style := "dark"
	if !m.theme.IsDark {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(m.transcriptWidth()-4),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
}

// visiblePending reports whether the exchange under the cursor is waiting
// on a streaming response. Input is locked while it is.
func (m Model) visiblePending() bool {
	conv := m.ctrl.Current()
	cur := m.ctrl.Cursor()
	if conv == nil || cur == nil {
		return false
	}
	ex := conv.ExchangeAt(cur.Pos())
	return ex != nil && ex.Pending
}
