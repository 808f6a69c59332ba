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
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient adapts an OpenAI-compatible endpoint to the Client
// interface. The VaultAI platform and local inference servers both
// expose this API shape, so one adapter covers every deployment.
//
// Thread Safety:
//
//	OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	client *openai.Client
	logger *slog.Logger
}

// OpenAIConfig configures the adapter.
type OpenAIConfig struct {
	// APIKey authenticates against the endpoint.
	APIKey string

	// BaseURL overrides the endpoint, e.g. for a VaultAI regional
	// gateway or a local server. Empty uses the provider default.
	BaseURL string

	// Logger receives request/response logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// NewOpenAIClient creates a gateway client for an OpenAI-compatible API.
//
// Inputs:
//
//	cfg - Adapter configuration. APIKey is required.
//
// Outputs:
//
//	*OpenAIClient - The configured client.
//	error - Non-nil if the configuration is invalid.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gateway: api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger,
	}, nil
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if request == nil {
		return nil, fmt.Errorf("gateway: nil request")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(request.Messages)+1)
	if request.Agent.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: request.Agent.SystemPrompt,
		})
	}
	for _, m := range request.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    request.Model.ID,
		Messages: messages,
	}
	if request.Agent.MaxTokens > 0 {
		req.MaxCompletionTokens = request.Agent.MaxTokens
	}
	if request.Agent.Temperature > 0 {
		req.Temperature = request.Agent.Temperature
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Warn("gateway request failed",
			slog.String("agent", request.Agent.Name),
			slog.String("model", request.Model.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("gateway: %s request: %w", request.Agent.Name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("gateway: %s request returned no choices", request.Agent.Name)
	}

	choice := resp.Choices[0]
	c.logger.Debug("gateway request complete",
		slog.String("agent", request.Agent.Name),
		slog.String("model", request.Model.String()),
		slog.String("finish_reason", string(choice.FinishReason)),
		slog.Duration("duration", time.Since(start)),
	)

	return &Response{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Duration:     time.Since(start),
	}, nil
}

// Name implements Client.
func (c *OpenAIClient) Name() string {
	return "openai"
}
