// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package record defines the persisted record families of the
// summarization pipeline and their key scheme.
//
// # Description
//
// Three families go through the key-value store:
//
//	summary/ordering/<sessionID>  ordered diff set for a session
//	summary/session/<sessionID>   per-session aggregate
//	summary/message/<messageID>   per-message summary record
//
// Reads treat absence as "no data" (zero value, ok=false); read
// decoding failures are surfaced so callers can decide whether stale
// cache bytes are fatal. Writes always propagate failures.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/VaultAI-EU/vault-code-cli/services/summary/diff"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/message"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/store"
)

// OrderingKey returns the store key for a session's persisted ordering.
func OrderingKey(sessionID string) string {
	return "summary/ordering/" + sessionID
}

// SessionKey returns the store key for a session aggregate.
func SessionKey(sessionID string) string {
	return "summary/session/" + sessionID
}

// MessageKey returns the store key for a message summary record.
func MessageKey(messageID string) string {
	return "summary/message/" + messageID
}

// Session is the per-session summary aggregate, recomputed on every
// successful session-level summarization.
type Session struct {
	// ID is the session identifier.
	ID string `json:"id"`

	// Additions and Deletions sum the current ordering's counts.
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`

	// Files is the number of files in the current ordering.
	Files int `json:"files"`

	// UpdatedAt is when the aggregate was last recomputed.
	UpdatedAt time.Time `json:"updated_at"`
}

// ReadOrdering loads the persisted ordering for a session.
//
// Outputs:
//
//	[]diff.FileDiff - The stored ordering; nil when absent.
//	bool - False when no ordering is stored.
//	error - Non-nil on store or decode failure.
func ReadOrdering(ctx context.Context, kv store.KV, sessionID string) ([]diff.FileDiff, bool, error) {
	data, ok, err := kv.Get(ctx, OrderingKey(sessionID))
	if err != nil || !ok {
		return nil, false, err
	}

	var diffs []diff.FileDiff
	if err := json.Unmarshal(data, &diffs); err != nil {
		return nil, false, fmt.Errorf("decode ordering for %s: %w", sessionID, err)
	}
	return diffs, true, nil
}

// WriteOrdering persists a session's ordering.
func WriteOrdering(ctx context.Context, kv store.KV, sessionID string, diffs []diff.FileDiff) error {
	data, err := json.Marshal(diffs)
	if err != nil {
		return fmt.Errorf("encode ordering for %s: %w", sessionID, err)
	}
	return kv.Set(ctx, OrderingKey(sessionID), data)
}

// ReadSession loads a session aggregate.
func ReadSession(ctx context.Context, kv store.KV, sessionID string) (Session, bool, error) {
	data, ok, err := kv.Get(ctx, SessionKey(sessionID))
	if err != nil || !ok {
		return Session{}, false, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, false, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return s, true, nil
}

// WriteSession persists a session aggregate.
func WriteSession(ctx context.Context, kv store.KV, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return kv.Set(ctx, SessionKey(s.ID), data)
}

// ReadMessage loads a persisted message record.
func ReadMessage(ctx context.Context, kv store.KV, messageID string) (message.Message, bool, error) {
	data, ok, err := kv.Get(ctx, MessageKey(messageID))
	if err != nil || !ok {
		return message.Message{}, false, err
	}

	var m message.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return message.Message{}, false, fmt.Errorf("decode message %s: %w", messageID, err)
	}
	return m, true, nil
}

// WriteMessage persists a message record.
func WriteMessage(ctx context.Context, kv store.KV, m message.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", m.ID, err)
	}
	return kv.Set(ctx, MessageKey(m.ID), data)
}
