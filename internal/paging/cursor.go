// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package paging tracks the view position over a conversation's turns.
package paging

// Invalid is returned by Move when the requested position is out of
// bounds. The cursor is left unchanged so callers can skip the refresh.
const Invalid = -1

// Cursor is a per-conversation position over [0, turnCount-1]. One cursor
// page shows one exchange. Not safe for concurrent use; it lives on the UI
// loop.
type Cursor struct {
	pos   int
	turns int
}

// NewCursor creates a cursor over turns exchanges, positioned at the end.
func NewCursor(turns int) *Cursor {
	c := &Cursor{turns: turns}
	c.End()
	return c
}

// Pos returns the current position.
func (c *Cursor) Pos() int {
	return c.pos
}

// Turns returns the turn count the cursor ranges over.
func (c *Cursor) Turns() int {
	return c.turns
}

// Move shifts the cursor by delta. Out-of-bounds moves are rejected, not
// clamped: the cursor stays put and Invalid is returned.
func (c *Cursor) Move(delta int) int {
	next := c.pos + delta
	if next < 0 || next >= c.turns {
		return Invalid
	}
	c.pos = next
	return c.pos
}

// End jumps to the last turn and returns its index. An empty conversation
// leaves the cursor at 0.
func (c *Cursor) End() int {
	if c.turns == 0 {
		c.pos = 0
		return 0
	}
	c.pos = c.turns - 1
	return c.pos
}

// Resize updates the turn count, keeping the position in bounds. Used when
// exchanges are appended or the conversation is switched.
func (c *Cursor) Resize(turns int) {
	c.turns = turns
	if turns == 0 {
		c.pos = 0
		return
	}
	if c.pos >= turns {
		c.pos = turns - 1
	}
}
