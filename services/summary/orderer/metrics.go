// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orderer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for diff ordering.
//
// Thread Safety: Safe for concurrent use.
type Metrics struct {
	// CacheHits counts orderings served from the persisted cache
	// without a gateway call.
	CacheHits prometheus.Counter

	// GatewayCalls counts completed ranking calls.
	GatewayCalls prometheus.Counter

	// Fallbacks counts fallback orderings by reason.
	Fallbacks *prometheus.CounterVec
}

// NewMetrics creates the ordering metrics, registered with reg.
//
// Inputs:
//
//	reg - Target registerer. Nil creates unregistered metrics, which
//	keeps tests isolated from the default registry.
//
// Outputs:
//
//	*Metrics - The created metrics. Never nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "summary",
			Name:      "ordering_cache_hits_total",
			Help:      "Orderings served from the persisted cache without a gateway call.",
		}),
		GatewayCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "summary",
			Name:      "ordering_gateway_calls_total",
			Help:      "Completed LLM ranking calls.",
		}),
		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "summary",
			Name:      "ordering_fallbacks_total",
			Help:      "Fallback orderings by reason.",
		}, []string{"reason"}),
	}
}
