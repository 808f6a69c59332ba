// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package summarizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the summarization pipeline.
//
// Thread Safety: Safe for concurrent use.
type Metrics struct {
	// Runs counts started summarization requests.
	Runs prometheus.Counter

	// StaleAbandons counts session-level sub-tasks abandoned because
	// a newer request superseded them mid-flight.
	StaleAbandons prometheus.Counter

	// InflightCancelled counts in-flight ordering calls cancelled by
	// a newer request for the same session.
	InflightCancelled prometheus.Counter

	// TitlesGenerated and BodiesGenerated count successful
	// generations.
	TitlesGenerated prometheus.Counter
	BodiesGenerated prometheus.Counter

	// GenerationFailures counts exhausted generation attempts by kind
	// (title or body).
	GenerationFailures *prometheus.CounterVec
}

// NewMetrics creates the summarizer metrics, registered with reg.
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
		Runs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "summary",
			Name:      "runs_total",
			Help:      "Started summarization requests.",
		}),
		StaleAbandons: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "summary",
			Name:      "stale_abandons_total",
			Help:      "Session-level sub-tasks abandoned after being superseded.",
		}),
		InflightCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "summary",
			Name:      "inflight_cancelled_total",
			Help:      "In-flight ordering calls cancelled by a newer request.",
		}),
		TitlesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "summary",
			Name:      "titles_generated_total",
			Help:      "Successful title generations.",
		}),
		BodiesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "summary",
			Name:      "bodies_generated_total",
			Help:      "Successful body generations.",
		}),
		GenerationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "summary",
			Name:      "generation_failures_total",
			Help:      "Exhausted generation attempts by kind.",
		}, []string{"kind"}),
	}
}
