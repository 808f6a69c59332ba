// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command summaryd hosts the session summarization pipeline: it owns
// the BadgerDB store, talks to the configured LLM gateway, and serves
// the sync/trigger/query HTTP API plus Prometheus metrics.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "summaryd",
	Short: "VaultAI session summarization daemon",
	Long: `summaryd maintains ordered diff sets, session aggregates, and
per-message summaries for VaultAI coding sessions. The conversation
layer syncs histories and snapshot diffs in and triggers summarization
after each completed assistant turn.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the summarization daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration file and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := LoadConfig(configPath); err != nil {
			return err
		}
		cmd.Println("configuration ok")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "summaryd.yaml", "path to the configuration file")
	rootCmd.AddCommand(serveCmd, checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
