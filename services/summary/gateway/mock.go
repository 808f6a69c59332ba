// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is a mock gateway client for testing.
//
// Thread Safety:
//
//	MockClient is safe for concurrent use.
type MockClient struct {
	mu sync.RWMutex

	// name is the provider name.
	name string

	// responses are queued responses to return in order.
	responses []*Response

	// defaultResponse is returned when no queued responses remain.
	defaultResponse *Response

	// calls records all calls made to Complete.
	calls []CompletionCall

	// responseFunc allows dynamic response generation.
	responseFunc func(context.Context, *Request) (*Response, error)

	// delay adds artificial latency to responses, honored against the
	// caller's context so cancellation tests behave like real I/O.
	delay time.Duration

	// errorToReturn causes Complete to return this error.
	errorToReturn error

	// errorsRemaining, when positive, limits how many calls fail with
	// errorToReturn before the mock recovers.
	errorsRemaining int
}

// CompletionCall records a call to Complete.
type CompletionCall struct {
	Request   *Request
	Timestamp time.Time
}

// NewMockClient creates a new mock gateway client.
func NewMockClient() *MockClient {
	return &MockClient{
		name: "mock",
		defaultResponse: &Response{
			Text:         "mock response",
			FinishReason: "stop",
		},
		calls: make([]CompletionCall, 0),
	}
}

// WithName sets the provider name.
func (c *MockClient) WithName(name string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	return c
}

// WithDelay adds artificial latency.
func (c *MockClient) WithDelay(d time.Duration) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
	return c
}

// WithError configures the client to return an error on every call.
func (c *MockClient) WithError(err error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorToReturn = err
	c.errorsRemaining = 0
	return c
}

// FailNext configures the next n calls to fail with err, after which
// the mock recovers. Useful for retry tests.
func (c *MockClient) FailNext(n int, err error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorToReturn = err
	c.errorsRemaining = n
	return c
}

// WithResponseFunc sets a dynamic response function.
func (c *MockClient) WithResponseFunc(f func(context.Context, *Request) (*Response, error)) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseFunc = f
	return c
}

// QueueText queues a plain text response.
func (c *MockClient) QueueText(text string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, &Response{Text: text, FinishReason: "stop"})
	return c
}

// SetDefaultText sets the text returned when the queue is empty.
func (c *MockClient) SetDefaultText(text string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultResponse = &Response{Text: text, FinishReason: "stop"}
	return c
}

// Complete implements the Client interface.
func (c *MockClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	c.mu.Lock()
	c.calls = append(c.calls, CompletionCall{Request: request, Timestamp: time.Now()})
	delay := c.delay
	responseFunc := c.responseFunc

	var errToReturn error
	if c.errorToReturn != nil {
		if c.errorsRemaining > 0 {
			c.errorsRemaining--
			errToReturn = c.errorToReturn
			if c.errorsRemaining == 0 {
				c.errorToReturn = nil
			}
		} else {
			errToReturn = c.errorToReturn
		}
	}

	var queued *Response
	if errToReturn == nil && responseFunc == nil && len(c.responses) > 0 {
		queued = c.responses[0]
		c.responses = c.responses[1:]
	}
	defaultResp := c.defaultResponse
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errToReturn != nil {
		return nil, errToReturn
	}
	if responseFunc != nil {
		return responseFunc(ctx, request)
	}
	if queued != nil {
		return queued, nil
	}

	resp := *defaultResp
	return &resp, nil
}

// Name implements the Client interface.
func (c *MockClient) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// CallCount returns the number of calls made.
func (c *MockClient) CallCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.calls)
}

// Calls returns all recorded calls.
func (c *MockClient) Calls() []CompletionCall {
	c.mu.RLock()
	defer c.mu.RUnlock()

	calls := make([]CompletionCall, len(c.calls))
	copy(calls, c.calls)
	return calls
}

// LastRequest returns the most recent request, or nil.
func (c *MockClient) LastRequest() *Request {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1].Request
}

// Verify ensures all queued responses were consumed.
func (c *MockClient) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.responses) > 0 {
		return fmt.Errorf("mock: %d queued responses not consumed", len(c.responses))
	}
	return nil
}

// Reset clears all recorded and configured state.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.responses = nil
	c.calls = make([]CompletionCall, 0)
	c.errorToReturn = nil
	c.errorsRemaining = 0
	c.responseFunc = nil
	c.delay = 0
}
