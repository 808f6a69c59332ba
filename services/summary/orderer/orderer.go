// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orderer produces a review-friendly ordering of a session's
// file-diff set.
//
// # Description
//
// Ordering is best effort: the common no-new-changes case is served
// from the previously persisted ordering without touching the model,
// and every degraded condition (no user message, no resolvable model,
// gateway failure, timeout, malformed output) resolves to a safe
// fallback order rather than an error. The result is always a
// permutation of the input diff set.
//
// # Thread Safety
//
// Orderer is safe for concurrent use.
package orderer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/VaultAI-EU/vault-code-cli/services/summary/diff"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/flight"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/gateway"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/message"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/model"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/record"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/store"
)

const (
	// rankTimeout bounds one ranking call, including its retry.
	rankTimeout = 8 * time.Second

	// rankAttempts is the total gateway attempts per ranking call:
	// one initial call plus one retry on transient failure.
	rankAttempts = 2
)

// rankAgent is the behavioral configuration for ranking requests.
var rankAgent = gateway.Agent{
	Name: "diff-rank",
	SystemPrompt: "You order changed files for code review. " +
		"Given a list of file changes and the user's most recent request, " +
		"respond with one file path per line, most important first, " +
		"covering every listed file exactly once. No other content.",
	MaxTokens:   1024,
	Temperature: 0,
}

// Orderer ranks diff sets.
type Orderer struct {
	gateway gateway.Client
	models  model.Resolver
	kv      store.KV
	flights *flight.Registry
	logger  *slog.Logger
	metrics *Metrics

	// timeout bounds one ranking call. Overridable in tests.
	timeout time.Duration
}

// New creates an Orderer.
//
// Inputs:
//
//	gw - The LLM gateway. Must not be nil.
//	models - Model resolver; failures are treated as "no model".
//	kv - Store holding previously persisted orderings.
//	flights - The per-session flight registry shared with the Summarizer.
//	logger - Structured logger. Must not be nil.
//	metrics - Pipeline metrics. May be nil.
//
// Outputs:
//
//	*Orderer - The configured orderer.
func New(gw gateway.Client, models model.Resolver, kv store.KV, flights *flight.Registry, logger *slog.Logger, metrics *Metrics) *Orderer {
	return &Orderer{
		gateway: gw,
		models:  models,
		kv:      kv,
		flights: flights,
		logger:  logger.With(slog.String("subsystem", "orderer")),
		metrics: metrics,
		timeout: rankTimeout,
	}
}

// Order produces a review-friendly ordering of the diff set.
//
// Description:
//
//	Tries, in turn: the cached-order fast path (identical file set and
//	content signatures), then LLM-assisted ranking bounded by an 8s
//	timeout with a per-session cancellation handle, and finally the
//	fallback order (cached order filtered to surviving files with new
//	files appended, else the raw input order). Persistence of the
//	result is the caller's
//	responsibility; the only side effect here is the gateway call.
//
// Inputs:
//
//	ctx - Context for the invocation.
//	sessionID - The owning session.
//	diffs - Diff set with unique file paths.
//	history - Ordered conversation history for the session.
//
// Outputs:
//
//	[]diff.FileDiff - A permutation of diffs. Never drops or invents
//	entries, and never fails.
func (o *Orderer) Order(ctx context.Context, sessionID string, diffs []diff.FileDiff, history []message.Message) []diff.FileDiff {
	if len(diffs) <= 1 {
		return diffs
	}

	cached := o.readCache(ctx, sessionID)

	byPath := make(map[string]diff.FileDiff, len(diffs))
	for _, d := range diffs {
		byPath[d.File] = d
	}

	// Cached entries still present in the current set, in cached order,
	// carrying the current diff content.
	var kept []diff.FileDiff
	for _, c := range cached {
		if d, ok := byPath[c.File]; ok {
			kept = append(kept, d)
		}
	}

	// Fast path: same file set, same count, identical content
	// signatures. Serves keystroke-triggered resummarization without
	// re-invoking the model.
	if len(kept) == len(diffs) && len(cached) == len(diffs) && diff.SignaturesEqual(cached, diffs) {
		if o.metrics != nil {
			o.metrics.CacheHits.Inc()
		}
		return kept
	}

	// Fallback: cached order filtered to surviving files, with files
	// added since the cached ordering appended in input order. Like the
	// final result, it is always a permutation of the current set.
	fallback := diffs
	if len(kept) > 0 {
		inCache := make(map[string]struct{}, len(kept))
		for _, d := range kept {
			inCache[d.File] = struct{}{}
		}
		fallback = kept
		for _, d := range diffs {
			if _, ok := inCache[d.File]; !ok {
				fallback = append(fallback, d)
			}
		}
	}

	userMsg, ok := message.LastUser(history)
	if !ok {
		return o.fellBack("no_user_message", fallback)
	}

	rankModel, ok := o.resolveModel(history)
	if !ok {
		return o.fellBack("no_model", fallback)
	}

	text, err := o.rank(ctx, sessionID, rankModel, userMsg, diffs)
	if err != nil {
		o.logger.Warn("diff ranking failed, using fallback order",
			slog.String("session_id", sessionID),
			slog.String("model", rankModel.String()),
			slog.String("error", err.Error()),
		)
		return o.fellBack("gateway_error", fallback)
	}

	parsed := parseRanking(text, diff.Paths(diffs))
	if len(parsed) == 0 {
		return o.fellBack("unparseable_output", fallback)
	}

	// Ranked files first, then everything the model didn't mention in
	// its original input order (stable tail).
	result := make([]diff.FileDiff, 0, len(diffs))
	mentioned := make(map[string]struct{}, len(parsed))
	for _, file := range parsed {
		result = append(result, byPath[file])
		mentioned[file] = struct{}{}
	}
	for _, d := range diffs {
		if _, ok := mentioned[d.File]; !ok {
			result = append(result, d)
		}
	}

	// Unreachable given the construction above, but a truncated result
	// must never escape.
	if len(result) != len(diffs) {
		return o.fellBack("length_mismatch", fallback)
	}
	return result
}

// fellBack counts a fallback occurrence and returns the order.
func (o *Orderer) fellBack(reason string, order []diff.FileDiff) []diff.FileDiff {
	if o.metrics != nil {
		o.metrics.Fallbacks.WithLabelValues(reason).Inc()
	}
	return order
}

// readCache loads the previously persisted ordering. Read or decode
// failures degrade to "no cached data".
func (o *Orderer) readCache(ctx context.Context, sessionID string) []diff.FileDiff {
	cached, ok, err := record.ReadOrdering(ctx, o.kv, sessionID)
	if err != nil {
		o.logger.Debug("cached ordering unavailable",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return nil
	}
	return cached
}

// resolveModel picks the small model tied to the most recent assistant
// response's provider, or the default provider when the session has no
// assistant message yet. Any resolver failure means "no model".
func (o *Orderer) resolveModel(history []message.Message) (model.Model, bool) {
	providerID := ""
	if assistant, ok := message.LastAssistant(history); ok {
		providerID = assistant.ProviderID
	} else {
		def, err := o.models.DefaultModel()
		if err != nil {
			return model.Model{}, false
		}
		providerID = def.ProviderID
	}

	small, err := o.models.GetSmallModel(providerID)
	if err != nil {
		return model.Model{}, false
	}
	return small, true
}

// rank performs the gateway call under the per-session cancellation
// handle and the hard timeout. The handle is disarmed on every exit
// path; the retry budget lives inside the timeout, which itself is
// never retried.
func (o *Orderer) rank(ctx context.Context, sessionID string, m model.Model, userMsg message.Message, diffs []diff.FileDiff) (string, error) {
	rankCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	ticket := o.flights.Arm(sessionID, cancel)
	defer o.flights.Disarm(sessionID, ticket)

	request := &gateway.Request{
		Agent:    rankAgent,
		Model:    m,
		Messages: buildRankMessages(userMsg, diffs),
	}

	var response *gateway.Response
	err := gateway.Retry(rankCtx, rankAttempts, func(ctx context.Context) error {
		var err error
		response, err = o.gateway.Complete(ctx, request)
		return err
	})
	if err != nil {
		return "", err
	}
	if o.metrics != nil {
		o.metrics.GatewayCalls.Inc()
	}
	return response.Text, nil
}

// buildRankMessages serializes the ranking request: the user's most
// recent request for context, then one row per diff.
func buildRankMessages(userMsg message.Message, diffs []diff.FileDiff) []gateway.Message {
	var sb strings.Builder
	sb.WriteString("The user's most recent request:\n")
	sb.WriteString(userMsg.Text())
	sb.WriteString("\n\nChanged files (path, change, additions, deletions, extension):\n")
	for _, d := range diffs {
		fmt.Fprintf(&sb, "%s\t%s\t+%d\t-%d\t%s\n",
			d.File, d.Kind(), d.Additions, d.Deletions, d.Extension())
	}
	return []gateway.Message{{Role: "user", Content: sb.String()}}
}
