// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the termchat TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application. It detects the
// terminal's color capability and background and adjusts accordingly.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Chrome
	App    lipgloss.Style
	Header lipgloss.Style
	Footer lipgloss.Style

	// Transcript
	UserBubble  lipgloss.Style
	ModelBubble lipgloss.Style
	Greeting    lipgloss.Style
	Waiting     lipgloss.Style
	PageFooter  lipgloss.Style

	// History panel
	HistoryPanel    lipgloss.Style
	HistoryItem     lipgloss.Style
	HistorySelected lipgloss.Style
	HistoryNew      lipgloss.Style

	// Input
	InputContainer lipgloss.Style
	InputLocked    lipgloss.Style

	// Misc
	ErrorText lipgloss.Style
	Spinner   lipgloss.Style
}

// palette is one set of theme colors.
type palette struct {
	accent    lipgloss.Color
	secondary lipgloss.Color
	muted     lipgloss.Color
	userBg    lipgloss.Color
	modelBg   lipgloss.Color
	errorFg   lipgloss.Color
	border    lipgloss.Color
}

var darkPalette = palette{
	accent:    lipgloss.Color("#7C6AEF"),
	secondary: lipgloss.Color("#5FD7D7"),
	muted:     lipgloss.Color("#6C6F85"),
	userBg:    lipgloss.Color("#2A2D3E"),
	modelBg:   lipgloss.Color("#1E2130"),
	errorFg:   lipgloss.Color("#FF6B6B"),
	border:    lipgloss.Color("#44475A"),
}

var lightPalette = palette{
	accent:    lipgloss.Color("#5B4BC4"),
	secondary: lipgloss.Color("#00877F"),
	muted:     lipgloss.Color("#8A8DA0"),
	userBg:    lipgloss.Color("#E8E6F5"),
	modelBg:   lipgloss.Color("#F2F1F8"),
	errorFg:   lipgloss.Color("#C0392B"),
	border:    lipgloss.Color("#C5C7D6"),
}

// NewTheme builds a theme for the requested mode: "dark", "light", or
// "auto" (background detection via termenv).
func NewTheme(mode string) *Theme {
	isDark := true
	switch mode {
	case "light":
		isDark = false
	case "dark":
	default:
		isDark = termenv.HasDarkBackground()
	}

	p := darkPalette
	if !isDark {
		p = lightPalette
	}

	return &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),

		App: lipgloss.NewStyle(),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.accent).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Foreground(p.muted).
			Padding(0, 1),

		UserBubble: lipgloss.NewStyle().
			Background(p.userBg).
			Padding(0, 1).
			MarginBottom(1),
		ModelBubble: lipgloss.NewStyle().
			Background(p.modelBg).
			Padding(0, 1),
		Greeting: lipgloss.NewStyle().
			Foreground(p.secondary).
			Padding(1, 2),
		Waiting: lipgloss.NewStyle().
			Foreground(p.muted).
			Italic(true),
		PageFooter: lipgloss.NewStyle().
			Foreground(p.muted).
			Align(lipgloss.Center),

		HistoryPanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(p.border).
			Padding(0, 1),
		HistoryItem: lipgloss.NewStyle().
			Foreground(p.muted),
		HistorySelected: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.accent),
		HistoryNew: lipgloss.NewStyle().
			Foreground(p.secondary),

		InputContainer: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(p.border).
			Padding(0, 1),
		InputLocked: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(p.muted).
			Foreground(p.muted).
			Padding(0, 1),

		ErrorText: lipgloss.NewStyle().Foreground(p.errorFg),
		Spinner:   lipgloss.NewStyle().Foreground(p.accent),
	}
}
