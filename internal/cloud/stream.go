// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// =============================================================================
// SSE STREAM TYPES
// =============================================================================

// streamEvent is one "data:" payload of an SSE completion stream.
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// content returns the delta text of the first choice.
func (e *streamEvent) content() string {
	if len(e.Choices) == 0 {
		return ""
	}
	return e.Choices[0].Delta.Content
}

// StreamChunk is a single increment of a streaming completion.
type StreamChunk struct {
	Content string
	Done    bool
	Error   error
}

// StreamCallback is invoked for each chunk, in arrival order.
type StreamCallback func(chunk StreamChunk)

// =============================================================================
// STREAMING COMPLETION
// =============================================================================

// ChatStream sends a streaming chat completion request and calls the
// callback for each delta, synchronously, in arrival order. Returns when the
// server signals [DONE], the context is cancelled, or the stream errors.
// Streaming requests are not retried; the event sequence is not restartable.
func (c *Client) ChatStream(ctx context.Context, messages []ChatMessage, callback StreamCallback) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	resp, err := c.post(ctx, c.stream, c.buildRequest(messages, true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	reader := bufio.NewReader(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// Server closed without [DONE]; treat what we got as final.
				callback(StreamChunk{Done: true})
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue // keep-alive comment or event separator
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			callback(StreamChunk{Done: true})
			return nil
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Skip malformed events rather than killing the stream.
			continue
		}
		if event.Error != nil {
			callback(StreamChunk{Error: errors.New(event.Error.Message), Done: true})
			return nil
		}

		callback(StreamChunk{Content: event.content()})

		if len(event.Choices) > 0 && event.Choices[0].FinishReason != "" {
			callback(StreamChunk{Done: true})
			return nil
		}
	}
}
