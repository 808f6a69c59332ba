// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway provides the LLM gateway interface for the
// summarization pipeline.
//
// This package defines the interface the pipeline uses for text
// generation. Cancellation is carried by the context: triggering the
// per-session handle or exceeding a deadline aborts the in-flight call.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/VaultAI-EU/vault-code-cli/services/summary/model"
)

// Client defines the interface for LLM interactions.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends a generation request and returns the full text
	// result once streaming finishes.
	//
	// Inputs:
	//   ctx - Context for cancellation and timeout
	//   request - The generation request
	//
	// Outputs:
	//   *Response - The generated result
	//   error - Non-nil if the request failed or was cancelled
	Complete(ctx context.Context, request *Request) (*Response, error)

	// Name returns the provider name (e.g. "openai").
	Name() string
}

// Agent is the behavioral configuration attached to a request: a named
// purpose with its system prompt and generation limits.
type Agent struct {
	// Name identifies the agent for logging.
	Name string `json:"name"`

	// SystemPrompt is the system message.
	SystemPrompt string `json:"system_prompt"`

	// MaxTokens limits the response length. Zero means provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness.
	Temperature float32 `json:"temperature,omitempty"`
}

// Message is one conversation message in a request.
type Message struct {
	// Role is "user", "assistant", or "system".
	Role string `json:"role"`

	// Content is the text content.
	Content string `json:"content"`
}

// Request represents a generation request.
type Request struct {
	// Agent is the behavioral configuration for this request.
	Agent Agent `json:"agent"`

	// Model is the resolved model to run.
	Model model.Model `json:"model"`

	// Messages is the conversation to submit.
	Messages []Message `json:"messages"`
}

// Response represents a completed generation.
type Response struct {
	// Text is the full generated text.
	Text string `json:"text"`

	// FinishReason records why generation stopped.
	FinishReason string `json:"finish_reason,omitempty"`

	// Duration is how long the request took.
	Duration time.Duration `json:"duration,omitempty"`
}

// =============================================================================
// Retry
// =============================================================================

// retryBaseDelay is the delay before the first retry; subsequent
// attempts back off linearly.
const retryBaseDelay = 250 * time.Millisecond

// Retry invokes fn up to attempts times, backing off between failures.
//
// Description:
//
//	Context cancellation and deadline expiry are not transient: they
//	abort the loop immediately so an outer timeout stays authoritative.
//	Any other failure is retried until the attempt budget is spent; the
//	last error is returned.
//
// Inputs:
//
//	ctx - Context bounding all attempts.
//	attempts - Total number of attempts (minimum 1).
//	fn - The operation to run.
//
// Outputs:
//
//	error - Nil on the first success, otherwise the final attempt's error.
func Retry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBaseDelay * time.Duration(attempt)):
		}
	}
	return err
}
