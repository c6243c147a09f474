// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for termchat.
//
// Persistence is whole-document: the entire conversation history is one JSON
// file, read on startup and rewritten atomically on every mutation. The
// in-memory Store is the single source of truth at runtime; the history file
// trails it by at most one failed write.
package storage
