// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat screen for the termchat TUI.
//
// The screen shows one transcript page at a time: page 0 is the greeting,
// every later page is one user/model exchange. A history panel on the left
// lists stored conversations newest-first. All mutation goes through the
// controller; background generation reaches the screen only as RefreshMsg
// values sent through the Bubble Tea program.
package chat
