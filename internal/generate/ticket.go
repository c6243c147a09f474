// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"github.com/google/uuid"

	"github.com/termforge/termchat/internal/model"
)

// =============================================================================
// GENERATION TICKET
// =============================================================================

// Ticket binds one generation run to one conversation turn. The ticket ID is
// stored on the Exchange itself; a run is live only while the stored ID
// still matches its own. Overwriting the stored ID is the sole cancellation
// mechanism.
type Ticket struct {
	ID             string
	ConversationID string
	TurnIndex      int
}

// Mint creates a fresh ticket for a turn. Writing its ID onto the Exchange
// invalidates any prior ticket for the same slot.
func Mint(conversationID string, turnIndex int) Ticket {
	return Ticket{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		TurnIndex:      turnIndex,
	}
}

// IsLive reports whether t is still the ticket stored on its turn. A
// missing conversation or turn means the slot is gone and the ticket is
// dead.
func IsLive(conv *model.Conversation, t Ticket) bool {
	if conv == nil || conv.ID != t.ConversationID {
		return false
	}
	ex := conv.ExchangeAt(t.TurnIndex)
	if ex == nil {
		return false
	}
	return ex.GenID == t.ID
}
