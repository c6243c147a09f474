// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"strings"
	"time"
)

// =============================================================================
// ECHO PROVIDER
// =============================================================================

// echoDelay paces echoed words so streaming paths get exercised.
const echoDelay = 30 * time.Millisecond

// EchoProvider streams the prompt back word by word. Used by debug mode to
// exercise the full streaming pipeline without a model backend.
type EchoProvider struct {
	delay time.Duration
}

// NewEchoProvider creates an echo provider with the default word delay.
func NewEchoProvider() *EchoProvider {
	return &EchoProvider{delay: echoDelay}
}

// Name identifies the backend for logging.
func (p *EchoProvider) Name() string { return "echo" }

// StreamGenerate streams the current prompt (the last history message) back
// one word at a time.
func (p *EchoProvider) StreamGenerate(ctx context.Context, history []Message) (<-chan Fragment, error) {
	out := make(chan Fragment, fragmentBuffer)

	var prompt string
	if n := len(history); n > 0 {
		prompt = history[n-1].Content
	}

	go func() {
		defer close(out)
		words := strings.Fields(prompt)
		if len(words) == 0 {
			words = []string{"(empty prompt)"}
		}
		for i, word := range words {
			text := word
			if i < len(words)-1 {
				text += " "
			}
			select {
			case out <- Fragment{Text: text}:
			case <-ctx.Done():
				return
			}
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// StaticGenerate returns the prompt unchanged.
func (p *EchoProvider) StaticGenerate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return prompt, nil
}
