// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/VaultAI-EU/vault-code-cli/services/summary/diff"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/message"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/store"
)

// historyKey is where a synced session history lives in the store.
func historyKey(sessionID string) string {
	return "history/" + sessionID
}

// snapshotKey is where a synced snapshot diff set lives in the store.
// The ".." separator cannot appear in a content-addressed reference.
func snapshotKey(from, to string) string {
	return "snapshot/" + from + ".." + to
}

// StoreHistory serves session histories that the conversation layer
// has synced into the store. An unsynced session is an empty history,
// not an error.
//
// Thread Safety: safe for concurrent use.
type StoreHistory struct {
	kv store.KV
}

// NewStoreHistory creates a store-backed history provider.
func NewStoreHistory(kv store.KV) *StoreHistory {
	return &StoreHistory{kv: kv}
}

// Messages implements summarizer.HistoryProvider.
func (h *StoreHistory) Messages(ctx context.Context, sessionID string) ([]message.Message, error) {
	data, ok, err := h.kv.Get(ctx, historyKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("read history for %s: %w", sessionID, err)
	}
	if !ok {
		return nil, nil
	}

	var msgs []message.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", sessionID, err)
	}
	return msgs, nil
}

// put persists a synced history.
func (h *StoreHistory) put(ctx context.Context, sessionID string, msgs []message.Message) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode history for %s: %w", sessionID, err)
	}
	return h.kv.Set(ctx, historyKey(sessionID), data)
}

// StoreSnapshots serves snapshot diff sets that the snapshot layer has
// synced into the store, keyed by the (from, to) reference pair. An
// unsynced pair is an empty diff set.
//
// Thread Safety: safe for concurrent use.
type StoreSnapshots struct {
	kv store.KV
}

// NewStoreSnapshots creates a store-backed snapshot provider.
func NewStoreSnapshots(kv store.KV) *StoreSnapshots {
	return &StoreSnapshots{kv: kv}
}

// Diff implements summarizer.SnapshotProvider.
func (s *StoreSnapshots) Diff(ctx context.Context, from, to string) ([]diff.FileDiff, error) {
	data, ok, err := s.kv.Get(ctx, snapshotKey(from, to))
	if err != nil {
		return nil, fmt.Errorf("read snapshot diff %s..%s: %w", from, to, err)
	}
	if !ok {
		return nil, nil
	}

	var diffs []diff.FileDiff
	if err := json.Unmarshal(data, &diffs); err != nil {
		return nil, fmt.Errorf("decode snapshot diff %s..%s: %w", from, to, err)
	}
	return diffs, nil
}

// put persists a synced diff set.
func (s *StoreSnapshots) put(ctx context.Context, from, to string, diffs []diff.FileDiff) error {
	data, err := json.Marshal(diffs)
	if err != nil {
		return fmt.Errorf("encode snapshot diff %s..%s: %w", from, to, err)
	}
	return s.kv.Set(ctx, snapshotKey(from, to), data)
}
