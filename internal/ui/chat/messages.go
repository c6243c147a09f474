// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/termforge/termchat/internal/config"
	"github.com/termforge/termchat/internal/controller"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// RefreshMsg tells the view that shared state changed. Background
// goroutines never touch the view directly; they emit refresh
// notifications that main marshals onto the Bubble Tea loop.
type RefreshMsg struct {
	ConversationID string
	Reason         controller.Reason
}

// ConfigReloadedMsg carries a freshly reloaded config from the file
// watcher.
type ConfigReloadedMsg struct {
	Config *config.Config
}
