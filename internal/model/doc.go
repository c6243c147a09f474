// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, exchanges,
// and messages.
//
// A conversation is an ordered sequence of exchanges. The exchange at index 0
// is always the greeting (a model-authored message with no user input); the
// exchanges at indices 1..N each pair one user prompt with its model reply.
// The JSON field names used here (id, timestamp, title, messages, user,
// model, ai_pending, gen_id) are the stable on-disk contract.
package model
