// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides a client for OpenAI-compatible chat endpoints.
//
// Both LM Studio (local) and hosted gateways such as OpenRouter expose the
// /v1/chat/completions surface, so one client covers every non-Ollama
// backend termchat supports.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Configuration constants.
const (
	// DefaultBaseURL points at a local LM Studio server.
	DefaultBaseURL = "http://127.0.0.1:1234/v1"

	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the retry budget for transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay caps the backoff delay.
	retryMaxDelay = 10 * time.Second

	// maxResponseSize bounds non-streaming response bodies.
	maxResponseSize = 10 * 1024 * 1024
)

// Error variables for common client errors.
var (
	// ErrAuthFailed indicates an invalid or expired API key.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the endpoint rejected the request with 429.
	ErrRateLimited = errors.New("rate limited by endpoint")

	// ErrUnavailable indicates the endpoint could not be reached.
	ErrUnavailable = errors.New("endpoint unavailable")
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is one message on the OpenAI-compatible wire.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// chatRequest is the body for /chat/completions.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatResponse is the non-streaming completion response.
type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// apiError is the error body OpenAI-compatible endpoints return.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Config holds the settings for an OpenAI-compatible client.
type Config struct {
	// BaseURL of the endpoint, including the /v1 suffix.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty. Local LM Studio
	// servers accept requests without one.
	APIKey string

	// Model is the model identifier sent with every request.
	Model string

	// Timeout for non-streaming requests.
	Timeout time.Duration

	// MaxRetries for transient failures on non-streaming requests.
	MaxRetries int

	// RequestsPerMinute throttles outgoing calls. Zero disables the limiter.
	RequestsPerMinute int

	// Sampling parameters.
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Client talks to an OpenAI-compatible chat endpoint. Safe for concurrent
// use.
type Client struct {
	config  Config
	http    *http.Client
	stream  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client. Zero-valued config fields get defaults.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}

	var limiter *rate.Limiter
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1)
	}

	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		// Streaming requests have no client timeout; lifetime is bounded
		// by the caller's context.
		stream:  &http.Client{},
		limiter: limiter,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.config.Model
}

// =============================================================================
// NON-STREAMING COMPLETION
// =============================================================================

// Chat sends a chat completion request and returns the assistant text.
// Transient failures are retried with exponential backoff.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("retrying chat completion")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.chatOnce(ctx, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isTransient(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) chatOnce(ctx context.Context, messages []ChatMessage) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.post(ctx, c.http, c.buildRequest(messages, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var result chatResponse
	body := io.LimitReader(resp.Body, maxResponseSize)
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return "", errors.New("failed to decode completion response: " + err.Error())
	}
	if result.Error != nil {
		return "", errors.New(result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("completion response contained no choices")
	}
	return result.Choices[0].Message.Content, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func (c *Client) buildRequest(messages []ChatMessage, stream bool) chatRequest {
	return chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Stream:      stream,
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
		MaxTokens:   c.config.MaxTokens,
	}
}

func (c *Client) post(ctx context.Context, client *http.Client, reqBody chatRequest) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.New("failed to marshal request: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.New("failed to create request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ErrUnavailable
	}
	return resp, nil
}

// wait blocks on the rate limiter, if one is configured.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		var aerr struct {
			Error apiError `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&aerr); err == nil && aerr.Error.Message != "" {
			return errors.New(aerr.Error.Message)
		}
		return errors.New("unexpected status: " + resp.Status)
	}
}

// isTransient reports whether a request is worth retrying.
func isTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}

// backoffDelay computes the exponential backoff delay for an attempt.
func backoffDelay(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
