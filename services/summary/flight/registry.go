// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flight tracks per-session sequencing tokens and the
// single-flight cancellation handle for in-flight ordering calls.
//
// # Description
//
// Every summarization request for a session advances that session's
// version. Asynchronous steps capture the version they were issued
// under and re-check it after each suspension point; a mismatch means
// a later request superseded this one and its results must be
// discarded. At most one LLM ordering call may be outstanding per
// session; arming a new handle cancels the previous one.
//
// # Thread Safety
//
// Registry is safe for concurrent use.
package flight

import (
	"context"
	"sync"
)

// state is the per-session entry: a monotonically increasing version
// and the cancellation handle of the in-flight ordering call, if any.
type state struct {
	version     uint64
	cancel      context.CancelFunc
	ticket      uint64
	hasInflight bool
}

// Registry owns the per-session sequencing and cancellation state.
// It is created once by the Summarizer and shared by reference with
// every call site; nothing else mutates it.
type Registry struct {
	mu         sync.Mutex
	sessions   map[string]*state
	nextTicket uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*state),
	}
}

func (r *Registry) get(sessionID string) *state {
	s, ok := r.sessions[sessionID]
	if !ok {
		s = &state{}
		r.sessions[sessionID] = s
	}
	return s
}

// Advance increments the session's sequencing token and returns the
// new value. The caller captures it as this invocation's version.
func (r *Registry) Advance(sessionID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(sessionID)
	s.version++
	return s.version
}

// Current returns the session's current sequencing token without
// advancing it. Zero means the session has never been summarized.
func (r *Registry) Current(sessionID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		return s.version
	}
	return 0
}

// CancelInflight triggers and removes the session's in-flight
// cancellation handle, if one exists.
//
// Outputs:
//
//	bool - True if a handle was cancelled.
func (r *Registry) CancelInflight(sessionID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	var cancel context.CancelFunc
	if ok && s.hasInflight {
		cancel = s.cancel
		s.cancel = nil
		s.hasInflight = false
	}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		return true
	}
	return false
}

// Arm registers a cancellation handle for the session, cancelling any
// handle already present, and returns a ticket identifying it. The
// ticket lets Disarm distinguish this handle from a successor's, so an
// overtaken call's deferred cleanup cannot clear the newer handle.
func (r *Registry) Arm(sessionID string, cancel context.CancelFunc) uint64 {
	r.mu.Lock()
	s := r.get(sessionID)
	prev := s.cancel
	hadPrev := s.hasInflight
	r.nextTicket++
	ticket := r.nextTicket
	s.cancel = cancel
	s.ticket = ticket
	s.hasInflight = true
	r.mu.Unlock()

	if hadPrev && prev != nil {
		prev()
	}
	return ticket
}

// Disarm clears the session's cancellation handle, but only if it still
// carries the given ticket.
func (r *Registry) Disarm(sessionID string, ticket uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || !s.hasInflight || s.ticket != ticket {
		return
	}
	s.cancel = nil
	s.hasInflight = false
}

// HasInflight reports whether the session has an armed handle.
func (r *Registry) HasInflight(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	return ok && s.hasInflight
}
