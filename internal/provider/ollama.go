// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/termforge/termchat/internal/config"
	"github.com/termforge/termchat/internal/ollama"
)

// =============================================================================
// OLLAMA PROVIDER
// =============================================================================

// OllamaProvider generates responses through a local Ollama server.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates a provider backed by the configured Ollama
// server.
func NewOllamaProvider(cfg *config.Config) *OllamaProvider {
	client := ollama.NewClient(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		DefaultModel: cfg.Ollama.Model,
		Options: &ollama.Options{
			Temperature: cfg.Ollama.Temperature,
			NumPredict:  cfg.Ollama.NumPredict,
		},
	})
	return &OllamaProvider{client: client}
}

// Name identifies the backend for logging.
func (p *OllamaProvider) Name() string { return "ollama" }

// StreamGenerate starts a streaming generation. The returned channel is
// closed when the stream ends; a stream failure arrives as a final fragment
// with Err set.
func (p *OllamaProvider) StreamGenerate(ctx context.Context, history []Message) (<-chan Fragment, error) {
	out := make(chan Fragment, fragmentBuffer)
	messages := make([]ollama.Message, len(history))
	for i, m := range history {
		messages[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}

	go func() {
		defer close(out)
		err := p.client.ChatStream(ctx, messages, func(chunk ollama.StreamChunk) {
			if chunk.Error != nil {
				deliver(ctx, out, Fragment{Err: chunk.Error})
				return
			}
			if chunk.Content != "" {
				deliver(ctx, out, Fragment{Text: chunk.Content})
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Msg("ollama stream ended with error")
			deliver(ctx, out, Fragment{Err: err})
		}
	}()

	return out, nil
}

// StaticGenerate produces a complete response in one call.
func (p *OllamaProvider) StaticGenerate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Chat(ctx, []ollama.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// deliver sends a fragment unless the context is already cancelled. The
// select keeps an abandoned stream from blocking forever on a full channel.
func deliver(ctx context.Context, out chan<- Fragment, f Fragment) {
	select {
	case out <- f:
	case <-ctx.Done():
	}
}
