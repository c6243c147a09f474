// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider abstracts the generation backends behind one interface.
//
// The controller and the streaming orchestrator never talk to a backend
// client directly; they pick a Provider at construction time and use it for
// the life of the session.
package provider

import (
	"context"

	"github.com/pkg/errors"

	"github.com/termforge/termchat/internal/config"
	"github.com/termforge/termchat/internal/model"
)

// =============================================================================
// PROVIDER INTERFACE
// =============================================================================

// Fragment is one increment of a streaming generation. A non-nil Err ends
// the stream; no further fragments follow it.
type Fragment struct {
	Text string
	Err  error
}

// Message is one turn of backend-neutral chat history.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Provider generates model responses for a conversation.
type Provider interface {
	// Name identifies the backend for logging.
	Name() string

	// StreamGenerate starts a streaming generation against the chat
	// history, whose last message is the current user prompt, and returns
	// a channel of fragments. The channel is closed when the stream ends,
	// for any reason. Cancel via ctx.
	StreamGenerate(ctx context.Context, history []Message) (<-chan Fragment, error)

	// StaticGenerate produces a complete response in one call. Used for
	// auxiliary generations such as conversation titles.
	StaticGenerate(ctx context.Context, prompt string) (string, error)
}

// fragmentBuffer is the channel depth adapters use. Deep enough that a slow
// consumer does not stall the HTTP read loop on typical token bursts.
const fragmentBuffer = 32

// ErrUnknownProvider indicates a provider name the factory does not know.
var ErrUnknownProvider = errors.New("unknown provider")

// =============================================================================
// HISTORY FLATTENING
// =============================================================================

// BuildHistory flattens the answered exchanges before turn index limit into
// backend-neutral chat history, skipping the canned greeting and empty
// messages. Unanswered prompts are left out; the orchestrator folds those
// into the final user message of the request.
func BuildHistory(conv *model.Conversation, limit int) []Message {
	if conv == nil {
		return nil
	}
	if limit > conv.TurnCount() {
		limit = conv.TurnCount()
	}
	var history []Message
	for i := 1; i < limit; i++ {
		ex := conv.ExchangeAt(i)
		if !ex.Answered() {
			continue
		}
		if text := ex.UserText(); text != "" {
			history = append(history, Message{Role: "user", Content: text})
		}
		if text, ok := ex.ModelText(); ok && text != "" {
			history = append(history, Message{Role: "assistant", Content: text})
		}
	}
	return history
}

// =============================================================================
// FACTORY
// =============================================================================

// New constructs the provider selected by cfg.Provider.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "openai":
		return NewCloudProvider(cfg), nil
	case "echo":
		return NewEchoProvider(), nil
	default:
		return nil, errors.Wrap(ErrUnknownProvider, cfg.Provider)
	}
}
