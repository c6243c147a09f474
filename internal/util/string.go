// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"
)

// TruncateWidth truncates a string to a maximum display width, appending an
// ellipsis when truncation happens. Double-width (CJK) characters count as
// two columns.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadRight pads a string with spaces to the given display width.
func PadRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

var whitespaceRun = regexp.MustCompile(`[ \t]+`)

// SanitizeInput normalizes user input before it enters a conversation:
// NFKC normalization, stripped non-printable runes, collapsed horizontal
// whitespace runs, trimmed ends. Newlines are preserved so multi-line
// prompts survive.
func SanitizeInput(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || isPrintable(r) {
			sb.WriteRune(r)
		}
	}
	s = whitespaceRun.ReplaceAllString(sb.String(), " ")
	return strings.TrimSpace(s)
}

func isPrintable(r rune) bool {
	return r >= 0x20 && r != 0x7f
}
