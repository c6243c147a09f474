// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/termforge/termchat/internal/model"
	"github.com/termforge/termchat/internal/util"
)

// View renders the chat screen.
func (m Model) View() string {
	if m.width == 0 {
		return "loading…"
	}

	transcript := m.renderTranscript()
	input := m.renderInput()
	footer := m.renderFooter()

	right := lipgloss.JoinVertical(lipgloss.Left, transcript, input, footer)

	if hw := m.historyWidth(); hw > 0 {
		panel := m.renderHistory(hw)
		return lipgloss.JoinHorizontal(lipgloss.Top, panel, right)
	}
	return right
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders the page under the cursor: the greeting page, or
// one user/model exchange.
func (m Model) renderTranscript() string {
	conv := m.ctrl.Current()
	cur := m.ctrl.Cursor()
	if conv == nil || cur == nil {
		return ""
	}

	w := m.transcriptWidth()
	contentHeight := m.height - 6 // input box, footers
	if contentHeight < 3 {
		contentHeight = 3
	}

	var body string
	ex := conv.ExchangeAt(cur.Pos())
	switch {
	case ex == nil:
		body = ""
	case cur.Pos() == 0:
		greeting, _ := ex.ModelText()
		body = m.theme.Greeting.Width(w - 2).Render(greeting)
	default:
		body = m.renderExchange(ex, w)
	}

	page := lipgloss.NewStyle().Width(w).Height(contentHeight).Render(body)
	pageFooter := m.theme.PageFooter.Width(w).Render(
		fmt.Sprintf("Page %d/%d", cur.Pos()+1, conv.TurnCount()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, page, pageFooter)
}

func (m Model) renderExchange(ex *model.Exchange, width int) string {
	var sections []string

	user := m.theme.UserBubble.Width(width - 4).Render("You: " + ex.UserText())
	sections = append(sections, user)

	switch {
	case ex.Pending:
		waiting := m.theme.Waiting.Render(m.spin.View() + " waiting for response…")
		sections = append(sections, waiting)
	case ex.Model != nil:
		text, _ := ex.ModelText()
		sections = append(sections, m.theme.ModelBubble.Width(width-4).Render(m.renderMarkdown(text)))
	default:
		sections = append(sections, m.theme.Waiting.Render("no response yet"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderMarkdown renders message text through glamour, falling back to the
// raw text when rendering is off or fails.
func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// HISTORY PANEL
// =============================================================================

func (m Model) renderHistory(width int) string {
	convs := m.ctrl.Conversations()
	current := m.ctrl.CurrentID()
	inner := width - 3

	var rows []string
	newLabel := "+ New conversation"
	if m.focus == focusHistory && m.histSel == 0 {
		rows = append(rows, m.theme.HistorySelected.Render(newLabel))
	} else {
		rows = append(rows, m.theme.HistoryNew.Render(newLabel))
	}

	// Newest first.
	for i := len(convs) - 1; i >= 0; i-- {
		conv := convs[i]
		row := len(convs) - i
		title := conv.Title
		if title == "" {
			title = firstPromptPreview(conv)
		}
		title = util.TruncateWidth(title, inner)

		style := m.theme.HistoryItem
		switch {
		case m.focus == focusHistory && m.histSel == row:
			style = m.theme.HistorySelected
		case conv.ID == current:
			style = m.theme.HistorySelected
		}
		rows = append(rows, style.Render(title))
	}

	panelHeight := m.height - 1
	return m.theme.HistoryPanel.Width(width).Height(panelHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// firstPromptPreview falls back to the first user prompt for untitled
// conversations.
func firstPromptPreview(conv *model.Conversation) string {
	for i := 1; i < conv.TurnCount(); i++ {
		if t := conv.ExchangeAt(i).UserText(); t != "" {
			return t
		}
	}
	return "Empty conversation"
}

// =============================================================================
// INPUT AND FOOTER
// =============================================================================

func (m Model) renderInput() string {
	w := m.transcriptWidth() - 2
	if m.visiblePending() {
		return m.theme.InputLocked.Width(w).Render("… response streaming, input locked")
	}
	return m.theme.InputContainer.Width(w).Render(m.input.View())
}

func (m Model) renderFooter() string {
	if m.showHelp {
		var groups []string
		for _, group := range m.keys.FullHelp() {
			var parts []string
			for _, b := range group {
				parts = append(parts, b.Help().Key+" "+b.Help().Desc)
			}
			groups = append(groups, strings.Join(parts, "  "))
		}
		return m.theme.Footer.Render(strings.Join(groups, "\n"))
	}

	var parts []string
	for _, b := range m.keys.ShortHelp() {
		parts = append(parts, b.Help().Key+" "+b.Help().Desc)
	}
	return m.theme.Footer.Render(strings.Join(parts, "  ·  "))
}
