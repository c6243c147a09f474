// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generate drives model generations for conversation turns.
//
// Each generation run is owned by one Orchestrator invocation on its own
// goroutine. Cancellation is cooperative: a run holds a Ticket minted at
// start, and any newer ticket minted for the same turn silently invalidates
// it. The run polls liveness between streamed fragments and self-terminates
// without writing when it finds itself superseded.
package generate
