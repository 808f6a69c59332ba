// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package model resolves which LLM the pipeline should use for a given
// provider, including the smaller/cheaper variants preferred for
// background work like ranking and title generation.
package model

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoModel is returned when a resolver cannot produce a model.
// Callers treat any resolver failure as "no model" and fall back.
var ErrNoModel = errors.New("model: no model available")

// Model identifies one LLM by provider and model id.
type Model struct {
	// ProviderID identifies the provider (e.g. "vaultai", "openai").
	ProviderID string `json:"provider_id"`

	// ID is the provider-scoped model identifier.
	ID string `json:"id"`
}

// IsZero reports whether the model is unset.
func (m Model) IsZero() bool {
	return m.ProviderID == "" && m.ID == ""
}

// String returns the canonical "provider/model" form.
func (m Model) String() string {
	return m.ProviderID + "/" + m.ID
}

// Resolver looks up models. Each method may fail when the underlying
// catalog is unavailable; callers must treat failure as "no model".
type Resolver interface {
	// DefaultModel returns the process-wide default model.
	DefaultModel() (Model, error)

	// GetModel returns a specific model of a provider.
	GetModel(providerID, modelID string) (Model, error)

	// GetSmallModel returns the provider's small/cheap variant, used
	// for background work. Providers without one fail with ErrNoModel.
	GetSmallModel(providerID string) (Model, error)
}

// StaticResolver is a Resolver backed by an in-memory catalog, built
// from configuration at startup.
//
// Thread Safety: StaticResolver is safe for concurrent use.
type StaticResolver struct {
	mu sync.RWMutex

	defaultModel Model
	models       map[string]map[string]struct{}
	smallModels  map[string]Model
}

// NewStaticResolver creates an empty catalog.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		models:      make(map[string]map[string]struct{}),
		smallModels: make(map[string]Model),
	}
}

// SetDefault sets the process default model and registers it.
func (r *StaticResolver) SetDefault(m Model) *StaticResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultModel = m
	r.registerLocked(m)
	return r
}

// Register adds a model to the catalog.
func (r *StaticResolver) Register(m Model) *StaticResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(m)
	return r
}

// SetSmall registers a provider's small variant.
func (r *StaticResolver) SetSmall(providerID string, m Model) *StaticResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(m)
	r.smallModels[providerID] = m
	return r
}

func (r *StaticResolver) registerLocked(m Model) {
	if m.IsZero() {
		return
	}
	if r.models[m.ProviderID] == nil {
		r.models[m.ProviderID] = make(map[string]struct{})
	}
	r.models[m.ProviderID][m.ID] = struct{}{}
}

// DefaultModel implements Resolver.
func (r *StaticResolver) DefaultModel() (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultModel.IsZero() {
		return Model{}, ErrNoModel
	}
	return r.defaultModel, nil
}

// GetModel implements Resolver.
func (r *StaticResolver) GetModel(providerID, modelID string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ids, ok := r.models[providerID]; ok {
		if _, ok := ids[modelID]; ok {
			return Model{ProviderID: providerID, ID: modelID}, nil
		}
	}
	return Model{}, fmt.Errorf("model %s/%s: %w", providerID, modelID, ErrNoModel)
}

// GetSmallModel implements Resolver.
func (r *StaticResolver) GetSmallModel(providerID string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.smallModels[providerID]; ok {
		return m, nil
	}
	return Model{}, fmt.Errorf("provider %s: %w", providerID, ErrNoModel)
}
