// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/VaultAI-EU/vault-code-cli/pkg/logging"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/api"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/bus"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/flight"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/gateway"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/orderer"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/store"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/summarizer"
)

// shutdownGrace bounds how long in-flight requests get to finish after
// a termination signal.
const shutdownGrace = 15 * time.Second

// serve wires the pipeline and runs the HTTP server until the context
// is cancelled or a termination signal arrives.
func serve(ctx context.Context, cfg *Config) error {
	logHandle, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		LogDir:  cfg.Log.Dir,
		Service: "summaryd",
		JSON:    cfg.Log.JSON,
		Quiet:   cfg.Log.Quiet,
	})
	if err != nil {
		return err
	}
	defer logHandle.Close()
	logger := logHandle.Slog()

	badgerCfg := store.DefaultBadgerConfig(cfg.DataDir)
	badgerCfg.Logger = logger
	kv, err := store.OpenBadger(badgerCfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	gw, err := gateway.NewOpenAIClient(gateway.OpenAIConfig{
		APIKey:  cfg.APIKey(),
		BaseURL: cfg.Gateway.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	models := cfg.Resolver()
	flights := flight.NewRegistry()
	events := bus.New()
	events.Subscribe(func(e bus.Event) {
		logger.Debug("pipeline event", slog.String("kind", string(e.Kind)))
	})

	history := api.NewStoreHistory(kv)
	snapshots := api.NewStoreSnapshots(kv)

	pipeline := summarizer.New(summarizer.Params{
		History:    history,
		Snapshots:  snapshots,
		Orderer:    orderer.New(gw, models, kv, flights, logger, orderer.NewMetrics(registry)),
		KV:         kv,
		Bus:        events,
		Gateway:    gw,
		Models:     models,
		Flights:    flights,
		Logger:     logger,
		Metrics:    summarizer.NewMetrics(registry),
		TitleModel: cfg.Models.Title.toModel(),
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(pipeline, history, snapshots, logger).Router(registry),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("summaryd listening",
			slog.String("addr", cfg.ListenAddr),
			slog.String("data_dir", cfg.DataDir),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
