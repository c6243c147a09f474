// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/termforge/termchat/internal/cloud"
	"github.com/termforge/termchat/internal/config"
)

// =============================================================================
// CLOUD PROVIDER
// =============================================================================

// CloudProvider generates responses through an OpenAI-compatible endpoint,
// such as LM Studio or a hosted gateway.
type CloudProvider struct {
	client *cloud.Client
}

// NewCloudProvider creates a provider backed by the configured endpoint.
func NewCloudProvider(cfg *config.Config) *CloudProvider {
	client := cloud.NewClient(cloud.Config{
		BaseURL:           cfg.Cloud.BaseURL,
		APIKey:            cfg.Cloud.APIKey,
		Model:             cfg.Cloud.Model,
		RequestsPerMinute: cfg.Cloud.RequestsPerMinute,
		Temperature:       cfg.Cloud.Temperature,
		MaxTokens:         cfg.Cloud.MaxTokens,
	})
	return &CloudProvider{client: client}
}

// Name identifies the backend for logging.
func (p *CloudProvider) Name() string { return "openai" }

// StreamGenerate starts a streaming generation. The returned channel is
// closed when the stream ends; a stream failure arrives as a final fragment
// with Err set.
func (p *CloudProvider) StreamGenerate(ctx context.Context, history []Message) (<-chan Fragment, error) {
	out := make(chan Fragment, fragmentBuffer)
	messages := make([]cloud.ChatMessage, len(history))
	for i, m := range history {
		messages[i] = cloud.ChatMessage{Role: m.Role, Content: m.Content}
	}

	go func() {
		defer close(out)
		err := p.client.ChatStream(ctx, messages, func(chunk cloud.StreamChunk) {
			if chunk.Error != nil {
				deliver(ctx, out, Fragment{Err: chunk.Error})
				return
			}
			if chunk.Content != "" {
				deliver(ctx, out, Fragment{Text: chunk.Content})
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Msg("cloud stream ended with error")
			deliver(ctx, out, Fragment{Err: err})
		}
	}()

	return out, nil
}

// StaticGenerate produces a complete response in one call.
func (p *CloudProvider) StaticGenerate(ctx context.Context, prompt string) (string, error) {
	return p.client.Chat(ctx, []cloud.ChatMessage{{Role: "user", Content: prompt}})
}
