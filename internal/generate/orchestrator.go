// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/termforge/termchat/internal/logging"
	"github.com/termforge/termchat/internal/model"
	"github.com/termforge/termchat/internal/provider"
	"github.com/termforge/termchat/internal/storage"
)

// =============================================================================
// RUN STATES
// =============================================================================

// State is the lifecycle state of one generation run.
type State int

const (
	StateInit State = iota
	StateContextBuilt
	StateStreaming
	StateFinalized
	StateAborted
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateContextBuilt:
		return "context_built"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// errorTemplate renders a provider failure inline in the transcript instead
// of discarding it.
const errorTemplate = "\n\n[response interrupted: %s]"

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator drives one model invocation per user turn. Fragments mutate
// the conversation in memory only; the conversation is persisted exactly
// once, at finalization, and only if the run's ticket is still live.
//
// Every conversation access goes through the store's critical section, so
// streaming writes cannot race snapshots or persists, and a conversation
// deleted mid-run makes every subsequent access report the slot gone.
// Safe for concurrent Run calls: each run owns its slot through its ticket,
// and a newer ticket on the same slot suppresses the older run's writes.
type Orchestrator struct {
	store    *storage.Store
	provider provider.Provider

	// timeout bounds one streaming invocation. Zero disables the guard.
	timeout time.Duration

	// notify signals the view layer that a conversation changed. Called
	// from the run goroutine; the consumer marshals onto its own loop.
	notify func(conversationID string)

	logger zerolog.Logger
}

// NewOrchestrator creates an orchestrator. notify may be nil.
func NewOrchestrator(store *storage.Store, prov provider.Provider, timeout time.Duration, notify func(conversationID string)) *Orchestrator {
	return &Orchestrator{
		store:    store,
		provider: prov,
		timeout:  timeout,
		notify:   notify,
		logger:   logging.ForComponent("orchestrator"),
	}
}

// Run drives a full generation for one turn: builds the prompt context,
// streams fragments into the turn's model message, and finalizes. The
// ticket is minted by the caller before handoff, so a newer action's ticket
// has already invalidated this run by the time it starts. Blocks until the
// run ends; callers start it on its own goroutine.
//
// Returns the terminal state, StateFinalized or StateAborted.
func (o *Orchestrator) Run(t Ticket, userText string) State {
	// Init: reset the slot for streaming, provided the ticket is still the
	// one stored there and the conversation still exists.
	var history []provider.Message
	live := false
	o.store.Update(t.ConversationID, func(conv *model.Conversation) bool {
		ex := conv.ExchangeAt(t.TurnIndex)
		if ex == nil || !IsLive(conv, t) {
			return false
		}
		live = true
		ex.Pending = true
		ex.Model = nil
		history = buildContext(conv, t.TurnIndex, userText)
		return false
	})
	if !live {
		o.logState(t, StateAborted)
		return StateAborted
	}
	o.logState(t, StateInit)
	o.refresh(t.ConversationID)
	o.logState(t, StateContextBuilt)

	if o.streamInto(t, history) == StateAborted {
		// The slot belongs to whoever minted the newer ticket, or is gone
		// with its conversation. No write.
		o.logState(t, StateAborted)
		return StateAborted
	}

	// Finalize: clear the pending flag and persist, atomically with the
	// liveness check so a conversation deleted mid-stream stays deleted.
	finalized := false
	o.store.Update(t.ConversationID, func(conv *model.Conversation) bool {
		if !IsLive(conv, t) {
			return false
		}
		conv.ExchangeAt(t.TurnIndex).Pending = false
		finalized = true
		return true
	})
	if !finalized {
		o.logState(t, StateAborted)
		return StateAborted
	}
	o.logState(t, StateFinalized)
	o.refresh(t.ConversationID)
	return StateFinalized
}

// streamInto consumes the provider stream, appending live fragments to the
// turn's model message. Returns StateFinalized when the stream is exhausted
// (errors folded inline) or StateAborted when the ticket went stale.
func (o *Orchestrator) streamInto(t Ticket, history []provider.Message) State {
	ctx := context.Background()
	var cancel context.CancelFunc
	if o.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	o.logState(t, StateStreaming)
	fragments, err := o.provider.StreamGenerate(ctx, history)
	if err != nil {
		return o.foldError(t, err)
	}

	for frag := range fragments {
		if frag.Err != nil {
			return o.foldError(t, streamError(ctx, frag.Err))
		}
		if !o.appendFragment(t, frag.Text) {
			// Stop consuming; the provider goroutine unwinds on cancel.
			return StateAborted
		}
	}

	if ctx.Err() != nil {
		return o.foldError(t, streamError(ctx, ctx.Err()))
	}
	return StateFinalized
}

// appendFragment lands one fragment on the run's slot. Reports false when
// the ticket is no longer live there.
func (o *Orchestrator) appendFragment(t Ticket, text string) bool {
	live := false
	o.store.Update(t.ConversationID, func(conv *model.Conversation) bool {
		if !IsLive(conv, t) {
			return false
		}
		live = true
		ex := conv.ExchangeAt(t.TurnIndex)
		if ex.Model == nil {
			ex.Model = model.NewModelMessage()
		}
		ex.Model.AppendFragment(text)
		return false
	})
	if live {
		o.refresh(t.ConversationID)
	}
	return live
}

// foldError appends the provider failure to the model message as visible
// text. Returns the run's terminal state.
func (o *Orchestrator) foldError(t Ticket, err error) State {
	o.logger.Debug().Err(err).Msg("provider error folded into transcript")
	if !o.appendFragment(t, fmt.Sprintf(errorTemplate, err)) {
		return StateAborted
	}
	return StateFinalized
}

// streamError maps a context deadline to a clearer message.
func streamError(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("generation timed out")
	}
	return err
}

func (o *Orchestrator) refresh(conversationID string) {
	if o.notify != nil {
		o.notify(conversationID)
	}
}

func (o *Orchestrator) logState(t Ticket, s State) {
	o.logger.Debug().
		Str("conversation", t.ConversationID).
		Int("turn", t.TurnIndex).
		Str("ticket", t.ID).
		Stringer("state", s).
		Msg("generation state")
}

// =============================================================================
// PROMPT CONTEXT
// =============================================================================

// buildContext assembles the request history: answered turns before the
// slot as role-tagged chat history, then one user message folding any
// orphaned prompts ahead of the current text, in turn order. Interrupted
// runs leave orphaned prompts behind; carrying them forward beats silently
// dropping them.
func buildContext(conv *model.Conversation, turnIndex int, userText string) []provider.Message {
	parts := conv.UnansweredBefore(turnIndex)
	parts = append(parts, userText)

	history := provider.BuildHistory(conv, turnIndex)
	return append(history, provider.Message{
		Role:    "user",
		Content: strings.Join(parts, "\n\n"),
	})
}
