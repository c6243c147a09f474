// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// =============================================================================
// ROLES
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message authored by the human operator.
	RoleUser Role = "user"

	// RoleModel marks a message authored by the generative backend.
	RoleModel Role = "model"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Part is a single text fragment of a message. Model messages accumulate one
// part per streamed fragment; user messages normally hold a single part.
type Part struct {
	Text string `json:"text"`
}

// Message is one authored message, built from ordered text fragments.
// Fragment order is preserved losslessly, including empty fragments
// received while streaming.
type Message struct {
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates a user message holding a single text part.
func NewUserMessage(text string) *Message {
	return &Message{
		Role:      RoleUser,
		Parts:     []Part{{Text: text}},
		Timestamp: time.Now(),
	}
}

// NewModelMessage creates an empty model message ready to receive streamed
// fragments.
func NewModelMessage() *Message {
	return &Message{
		Role:      RoleModel,
		Parts:     make([]Part, 0),
		Timestamp: time.Now(),
	}
}

// NewModelMessageWithText creates a model message holding a single text part.
// Used for the greeting and for non-streamed replies.
func NewModelMessageWithText(text string) *Message {
	return &Message{
		Role:      RoleModel,
		Parts:     []Part{{Text: text}},
		Timestamp: time.Now(),
	}
}

// Text returns the message content: all parts concatenated in order.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	if len(m.Parts) == 1 {
		return m.Parts[0].Text
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// AppendFragment appends one streamed fragment as a new part. Empty
// fragments are kept so the part sequence mirrors exactly what the
// provider emitted.
func (m *Message) AppendFragment(text string) {
	m.Parts = append(m.Parts, Part{Text: text})
}

// IsEmpty reports whether the message has no text content at all.
func (m *Message) IsEmpty() bool {
	return m.Text() == ""
}
