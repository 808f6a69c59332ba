// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package summarizer coordinates session summarization.
//
// # Description
//
// One Summarize call runs two concurrent sub-tasks over a single
// history load: the session-level task recomputes the session's
// ordered diff set and aggregate counters, and the message-level task
// maintains the per-message record (diff set, title, body). The two
// fail independently.
//
// Summarize calls for the same session supersede each other: every
// call advances the session's sequencing version and cancels any
// in-flight ordering call, and a superseded session-level task
// abandons silently at its next version check instead of overwriting
// newer results.
//
// # Thread Safety
//
// Summarizer is safe for concurrent use.
package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/VaultAI-EU/vault-code-cli/services/summary/bus"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/diff"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/flight"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/gateway"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/message"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/model"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/orderer"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/record"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/store"
)

// HistoryProvider supplies a session's ordered conversation history.
type HistoryProvider interface {
	// Messages returns the session's messages in conversation order.
	Messages(ctx context.Context, sessionID string) ([]message.Message, error)
}

// SnapshotProvider computes file diffs between two working-tree
// snapshots.
type SnapshotProvider interface {
	// Diff returns the file changes between the from and to snapshot
	// references.
	Diff(ctx context.Context, from, to string) ([]diff.FileDiff, error)
}

// Params collects the Summarizer's dependencies.
type Params struct {
	// History supplies conversation histories. Required.
	History HistoryProvider

	// Snapshots computes working-tree diffs. Required.
	Snapshots SnapshotProvider

	// Orderer ranks diff sets. Required.
	Orderer *orderer.Orderer

	// KV is the persistence store. Required.
	KV store.KV

	// Bus receives pipeline events. Required.
	Bus *bus.Bus

	// Gateway is the LLM gateway used for title and body generation.
	// Required.
	Gateway gateway.Client

	// Models resolves generation models. Required.
	Models model.Resolver

	// Flights is the per-session flight registry shared with the
	// Orderer. Required.
	Flights *flight.Registry

	// Logger is the structured logger. Required.
	Logger *slog.Logger

	// Metrics are the pipeline metrics. May be nil.
	Metrics *Metrics

	// TitleModel, when set, overrides the resolved small model for
	// title generation.
	TitleModel model.Model
}

// Summarizer maintains session and message summary records.
type Summarizer struct {
	history    HistoryProvider
	snapshots  SnapshotProvider
	orderer    *orderer.Orderer
	kv         store.KV
	bus        *bus.Bus
	gateway    gateway.Client
	models     model.Resolver
	flights    *flight.Registry
	logger     *slog.Logger
	metrics    *Metrics
	titleModel model.Model
}

// New creates a Summarizer.
func New(p Params) *Summarizer {
	return &Summarizer{
		history:    p.History,
		snapshots:  p.Snapshots,
		orderer:    p.Orderer,
		kv:         p.KV,
		bus:        p.Bus,
		gateway:    p.Gateway,
		models:     p.Models,
		flights:    p.Flights,
		logger:     p.Logger.With(slog.String("subsystem", "summarizer")),
		metrics:    p.Metrics,
		titleModel: p.TitleModel,
	}
}

// Summarize recomputes the session-level and message-level summary
// records for one conversation turn.
//
// Description:
//
//	Advances the session's sequencing version (superseding any older
//	in-flight run), cancels any in-flight ordering call, loads the
//	history once, and runs the two sub-tasks concurrently. Sub-task
//	failures are independent: a persistence failure in one does not
//	stop the other, and both are reported joined.
//
// Inputs:
//
//	ctx - Context for the invocation.
//	sessionID - The session to summarize.
//	messageID - The user message anchoring the message-level record.
//
// Outputs:
//
//	error - Non-nil when the history load or either sub-task's
//	persistence fails. Generation and ordering failures never surface
//	here.
func (s *Summarizer) Summarize(ctx context.Context, sessionID, messageID string) error {
	if s.metrics != nil {
		s.metrics.Runs.Inc()
	}

	version := s.flights.Advance(sessionID)
	if s.flights.CancelInflight(sessionID) && s.metrics != nil {
		s.metrics.InflightCancelled.Inc()
	}

	history, err := s.history.Messages(ctx, sessionID)
	if err != nil {
		return err
	}

	var (
		wg         sync.WaitGroup
		sessionErr error
		messageErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sessionErr = s.summarizeSession(ctx, sessionID, version, history)
	}()
	go func() {
		defer wg.Done()
		messageErr = s.summarizeMessage(ctx, sessionID, messageID, history)
	}()
	wg.Wait()

	return errors.Join(sessionErr, messageErr)
}

// =============================================================================
// Session-Level Sub-Task
// =============================================================================

// summarizeSession recomputes the session's ordered diff set and
// aggregate. It checks its version after every async boundary and
// abandons silently when superseded.
func (s *Summarizer) summarizeSession(ctx context.Context, sessionID string, version uint64, history []message.Message) error {
	diffs := s.computeDiffs(ctx, history)
	if s.abandoned(sessionID, version) {
		return nil
	}

	ordered := s.orderer.Order(ctx, sessionID, diffs, history)
	if s.abandoned(sessionID, version) {
		return nil
	}

	if err := record.WriteOrdering(ctx, s.kv, sessionID, ordered); err != nil {
		return err
	}

	additions, deletions, files := diff.Totals(ordered)
	aggregate := record.Session{
		ID:        sessionID,
		Additions: additions,
		Deletions: deletions,
		Files:     files,
		UpdatedAt: time.Now().UTC(),
	}
	if err := record.WriteSession(ctx, s.kv, aggregate); err != nil {
		return err
	}

	s.bus.Publish(bus.KindSessionDiffsUpdated, bus.DiffsUpdated{
		SessionID: sessionID,
		Diffs:     ordered,
	})
	s.bus.Publish(bus.KindSessionUpdated, bus.SessionUpdated{
		SessionID: sessionID,
		Additions: additions,
		Deletions: deletions,
		Files:     files,
	})
	return nil
}

// abandoned reports whether a newer Summarize call superseded version.
func (s *Summarizer) abandoned(sessionID string, version uint64) bool {
	if s.flights.Current(sessionID) == version {
		return false
	}
	if s.metrics != nil {
		s.metrics.StaleAbandons.Inc()
	}
	s.logger.Debug("session summarization superseded",
		slog.String("session_id", sessionID),
		slog.Uint64("version", version),
	)
	return true
}

// computeDiffs derives a message slice's diff set: the snapshot range
// is diffed, then restricted to files that patch parts actually name.
// Missing snapshots, an unchanged range, and provider failures all
// degrade to an empty set.
func (s *Summarizer) computeDiffs(ctx context.Context, msgs []message.Message) []diff.FileDiff {
	from, to := message.SnapshotRange(msgs)
	if from == "" || to == "" || from == to {
		return nil
	}

	patched := message.PatchFiles(msgs)
	if len(patched) == 0 {
		return nil
	}

	raw, err := s.snapshots.Diff(ctx, from, to)
	if err != nil {
		s.logger.Warn("snapshot diff failed, treating as empty",
			slog.String("from", from),
			slog.String("to", to),
			slog.String("error", err.Error()),
		)
		return nil
	}

	var out []diff.FileDiff
	for _, d := range raw {
		if _, ok := patched[d.File]; ok {
			out = append(out, d)
		}
	}
	return out
}

// =============================================================================
// Message-Level Sub-Task
// =============================================================================

// summarizeMessage maintains the per-message record: the diff set is
// recomputed and persisted unconditionally, then a title is generated
// once per message and a body whenever the exchange has finished with
// real changes. Generation failures are logged and leave the record's
// existing fields untouched.
func (s *Summarizer) summarizeMessage(ctx context.Context, sessionID, messageID string, history []message.Message) error {
	slice := message.MessageSlice(history, messageID)

	var target message.Message
	for _, m := range slice {
		if m.ID == messageID {
			target = m
			break
		}
	}
	if target.ID == "" {
		return nil
	}

	summary := s.existingSummary(ctx, messageID)
	diffs := s.computeDiffs(ctx, slice)
	summary.Diffs = diffs
	summary.Additions, summary.Deletions, summary.Files = diff.Totals(diffs)

	target.Summary = &summary
	if err := record.WriteMessage(ctx, s.kv, target); err != nil {
		return err
	}

	updated := false
	if summary.Title == "" && target.HasUserText() {
		if title, ok := s.generateTitle(ctx, history, target); ok {
			summary.Title = title
			updated = true
		}
	}
	if shouldGenerateBody(slice, diffs) {
		if body, ok := s.generateBody(ctx, slice); ok {
			summary.Body = body
			updated = true
		}
	}

	if updated {
		target.Summary = &summary
		if err := record.WriteMessage(ctx, s.kv, target); err != nil {
			return err
		}
	}

	s.bus.Publish(bus.KindMessageUpdated, bus.MessageUpdated{
		SessionID: sessionID,
		MessageID: messageID,
	})
	return nil
}

// existingSummary carries a previously persisted title and body across
// recomputation. Read failures mean a fresh record.
func (s *Summarizer) existingSummary(ctx context.Context, messageID string) message.Summary {
	stored, ok, err := record.ReadMessage(ctx, s.kv, messageID)
	if err != nil {
		s.logger.Debug("stored message record unavailable",
			slog.String("message_id", messageID),
			slog.String("error", err.Error()),
		)
		return message.Summary{}
	}
	if !ok || stored.Summary == nil {
		return message.Summary{}
	}
	return *stored.Summary
}

// shouldGenerateBody reports whether the exchange warrants a prose
// summary: some assistant response finished for a reason other than
// emitting tool calls, and the exchange changed files.
func shouldGenerateBody(slice []message.Message, diffs []diff.FileDiff) bool {
	if len(diffs) == 0 {
		return false
	}
	for _, m := range slice {
		if m.Role != message.RoleAssistant {
			continue
		}
		if m.FinishReason != "" && m.FinishReason != message.FinishToolCalls {
			return true
		}
	}
	return false
}

// generateTitle produces a short title from the anchoring user
// message. Returns false when all attempts fail.
func (s *Summarizer) generateTitle(ctx context.Context, history []message.Message, target message.Message) (string, bool) {
	m, ok := s.resolveTitleModel(history)
	if !ok {
		return "", false
	}

	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	request := &gateway.Request{
		Agent:    titleAgent,
		Model:    m,
		Messages: []gateway.Message{{Role: "user", Content: target.Text()}},
	}

	var response *gateway.Response
	err := gateway.Retry(genCtx, generateAttempts, func(ctx context.Context) error {
		var err error
		response, err = s.gateway.Complete(ctx, request)
		return err
	})
	if err != nil {
		s.recordGenerationFailure("title", target.ID, err)
		return "", false
	}

	title := cleanTitle(response.Text)
	if title == "" {
		s.recordGenerationFailure("title", target.ID, errors.New("empty output"))
		return "", false
	}
	if s.metrics != nil {
		s.metrics.TitlesGenerated.Inc()
	}
	return title, true
}

// generateBody produces a prose summary of the exchange from the slice
// with completed tool outputs redacted. Returns false when all
// attempts fail.
func (s *Summarizer) generateBody(ctx context.Context, slice []message.Message) (string, bool) {
	m, ok := s.resolveBodyModel(slice)
	if !ok {
		return "", false
	}

	redacted := message.RedactToolOutputs(slice)
	msgs := buildBodyMessages(redacted)
	if len(msgs) == 0 {
		return "", false
	}

	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	request := &gateway.Request{
		Agent:    bodyAgent,
		Model:    m,
		Messages: msgs,
	}

	var response *gateway.Response
	err := gateway.Retry(genCtx, generateAttempts, func(ctx context.Context) error {
		var err error
		response, err = s.gateway.Complete(ctx, request)
		return err
	})
	if err != nil {
		s.recordGenerationFailure("body", "", err)
		return "", false
	}

	body := strings.TrimSpace(response.Text)
	if body == "" {
		s.recordGenerationFailure("body", "", errors.New("empty output"))
		return "", false
	}
	if s.metrics != nil {
		s.metrics.BodiesGenerated.Inc()
	}
	return body, true
}

func (s *Summarizer) recordGenerationFailure(kind, messageID string, err error) {
	if s.metrics != nil {
		s.metrics.GenerationFailures.WithLabelValues(kind).Inc()
	}
	s.logger.Warn("summary generation failed",
		slog.String("kind", kind),
		slog.String("message_id", messageID),
		slog.String("error", err.Error()),
	)
}

// resolveTitleModel picks the configured title model when set, else
// the small model of the most recent assistant's provider, else the
// default provider's small model.
func (s *Summarizer) resolveTitleModel(history []message.Message) (model.Model, bool) {
	if !s.titleModel.IsZero() {
		return s.titleModel, true
	}

	providerID := ""
	if assistant, ok := message.LastAssistant(history); ok {
		providerID = assistant.ProviderID
	} else {
		def, err := s.models.DefaultModel()
		if err != nil {
			return model.Model{}, false
		}
		providerID = def.ProviderID
	}

	small, err := s.models.GetSmallModel(providerID)
	if err != nil {
		return model.Model{}, false
	}
	return small, true
}

// resolveBodyModel prefers the small model of the provider that
// produced the exchange's most recent assistant response, then that
// response's own model, then the process default.
func (s *Summarizer) resolveBodyModel(slice []message.Message) (model.Model, bool) {
	if assistant, ok := message.LastAssistant(slice); ok && assistant.ProviderID != "" {
		if m, err := s.models.GetSmallModel(assistant.ProviderID); err == nil {
			return m, true
		}
		if m, err := s.models.GetModel(assistant.ProviderID, assistant.ModelID); err == nil {
			return m, true
		}
	}
	if m, err := s.models.DefaultModel(); err == nil {
		if small, err := s.models.GetSmallModel(m.ProviderID); err == nil {
			return small, true
		}
		return m, true
	}
	return model.Model{}, false
}

// =============================================================================
// Queries
// =============================================================================

// Ordering returns the session's persisted diff ordering. An absent
// ordering is an empty result, not an error.
func (s *Summarizer) Ordering(ctx context.Context, sessionID string) ([]diff.FileDiff, error) {
	diffs, ok, err := record.ReadOrdering(ctx, s.kv, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return diffs, nil
}

// Session returns the session's persisted aggregate.
func (s *Summarizer) Session(ctx context.Context, sessionID string) (record.Session, bool, error) {
	return record.ReadSession(ctx, s.kv, sessionID)
}

// MessageSummary returns a message's persisted summary record.
func (s *Summarizer) MessageSummary(ctx context.Context, messageID string) (*message.Summary, bool, error) {
	stored, ok, err := record.ReadMessage(ctx, s.kv, messageID)
	if err != nil || !ok {
		return nil, false, err
	}
	if stored.Summary == nil {
		return nil, false, nil
	}
	return stored.Summary, true, nil
}
