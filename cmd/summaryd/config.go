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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/VaultAI-EU/vault-code-cli/pkg/logging"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/model"
)

// Config is the summaryd configuration file.
type Config struct {
	// ListenAddr is the address the HTTP API binds to.
	ListenAddr string `yaml:"listen_addr"`

	// DataDir is the BadgerDB directory.
	DataDir string `yaml:"data_dir"`

	// Log configures structured logging.
	Log struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
		JSON  bool   `yaml:"json"`
		Quiet bool   `yaml:"quiet"`
	} `yaml:"log"`

	// Gateway configures the LLM endpoint. The key can be inlined or,
	// preferably, named by environment variable.
	Gateway struct {
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"gateway"`

	// Models is the model table: the process default, the per-provider
	// small variants used for ranking and titles, and an optional title
	// override.
	Models struct {
		Default modelRef          `yaml:"default"`
		Small   map[string]string `yaml:"small"`
		Title   modelRef          `yaml:"title"`
	} `yaml:"models"`
}

// modelRef names one model in the config file.
type modelRef struct {
	Provider string `yaml:"provider"`
	ID       string `yaml:"id"`
}

func (r modelRef) toModel() model.Model {
	return model.Model{ProviderID: r.Provider, ID: r.ID}
}

func (r modelRef) isZero() bool {
	return r.Provider == "" && r.ID == ""
}

// LoadConfig reads and validates the config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8091"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would fail at first use.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.Models.Default.isZero() {
		return fmt.Errorf("config: models.default is required")
	}
	if len(c.Models.Small) == 0 {
		return fmt.Errorf("config: models.small needs at least one provider entry")
	}
	if c.APIKey() == "" {
		return fmt.Errorf("config: gateway api key missing (set gateway.api_key or gateway.api_key_env)")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// APIKey resolves the gateway key from the config or the environment.
func (c *Config) APIKey() string {
	if c.Gateway.APIKey != "" {
		return c.Gateway.APIKey
	}
	if c.Gateway.APIKeyEnv != "" {
		return os.Getenv(c.Gateway.APIKeyEnv)
	}
	return ""
}

// Resolver builds the model resolver from the config's model table.
func (c *Config) Resolver() *model.StaticResolver {
	resolver := model.NewStaticResolver().SetDefault(c.Models.Default.toModel())
	for provider, id := range c.Models.Small {
		resolver.SetSmall(provider, model.Model{ProviderID: provider, ID: id})
	}
	if !c.Models.Title.isZero() {
		resolver.Register(c.Models.Title.toModel())
	}
	return resolver
}
