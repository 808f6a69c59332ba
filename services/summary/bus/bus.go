// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bus is the in-process publish/subscribe channel for
// session-level events emitted by the summarization pipeline.
//
// # Thread Safety
//
// Bus is safe for concurrent use. Handler panics are recovered so one
// misbehaving subscriber cannot take down the publisher or starve the
// other subscribers.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VaultAI-EU/vault-code-cli/services/summary/diff"
)

// Kind identifies an event family.
type Kind string

const (
	// KindSessionDiffsUpdated is published after a session's ordering
	// has been persisted.
	KindSessionDiffsUpdated Kind = "session.diffs.updated"

	// KindSessionUpdated is published after a session record changes.
	KindSessionUpdated Kind = "session.updated"

	// KindMessageUpdated is published after a message summary changes.
	KindMessageUpdated Kind = "message.updated"
)

// DiffsUpdated is the payload of KindSessionDiffsUpdated events.
type DiffsUpdated struct {
	SessionID string          `json:"session_id"`
	Diffs     []diff.FileDiff `json:"diffs"`
}

// SessionUpdated is the payload of KindSessionUpdated events.
type SessionUpdated struct {
	SessionID string `json:"session_id"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Files     int    `json:"files"`
}

// MessageUpdated is the payload of KindMessageUpdated events.
type MessageUpdated struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
}

// Event is one published occurrence.
type Event struct {
	// ID uniquely identifies the event.
	ID string

	// Kind is the event family.
	Kind Kind

	// Timestamp is when the event was published.
	Timestamp time.Time

	// Payload is the kind-specific data.
	Payload any
}

// Handler processes events.
type Handler func(event Event)

// subscription pairs a handler with its kind filter.
type subscription struct {
	handler Handler
	kinds   map[Kind]struct{}
}

// Bus broadcasts events to subscribers.
//
// Thread Safety: Bus is safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string]*subscription)}
}

// Subscribe registers a handler for the given kinds (all kinds when
// none are given) and returns a subscription id for Unsubscribe.
func (b *Bus) Subscribe(handler Handler, kinds ...Kind) string {
	sub := &subscription{handler: handler}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.subs[id] = sub
	return id
}

// Unsubscribe removes a subscription.
//
// Outputs:
//
//	bool - True if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[id]; ok {
		delete(b.subs, id)
		return true
	}
	return false
}

// Publish broadcasts an event synchronously to every matching
// subscriber, recovering handler panics.
func (b *Bus) Publish(kind Kind, payload any) {
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	event := Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	for _, s := range subs {
		if s.kinds != nil {
			if _, ok := s.kinds[kind]; !ok {
				continue
			}
		}
		b.safeInvoke(s.handler, event)
	}
}

func (b *Bus) safeInvoke(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				"event_kind", event.Kind,
				"event_id", event.ID,
				"panic", r,
			)
		}
	}()
	handler(event)
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
