// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
listen_addr: ":9000"
data_dir: "/tmp/summaryd-test"
log:
  level: debug
gateway:
  api_key: test-key
models:
  default:
    provider: vaultai
    id: vault-large
  small:
    vaultai: vault-small
  title:
    provider: vaultai
    id: vault-title
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "summaryd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "test-key", cfg.APIKey())

	resolver := cfg.Resolver()
	def, err := resolver.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "vaultai/vault-large", def.String())

	small, err := resolver.GetSmallModel("vaultai")
	require.NoError(t, err)
	assert.Equal(t, "vault-small", small.ID)

	title, err := resolver.GetModel("vaultai", "vault-title")
	require.NoError(t, err)
	assert.Equal(t, "vault-title", title.ID)
}

func TestLoadConfig_DefaultListenAddr(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
data_dir: "/tmp/x"
gateway: {api_key: k}
models:
  default: {provider: p, id: m}
  small: {p: s}
`))
	require.NoError(t, err)
	assert.Equal(t, ":8091", cfg.ListenAddr)
}

func TestLoadConfig_APIKeyFromEnv(t *testing.T) {
	t.Setenv("SUMMARYD_TEST_KEY", "env-key")

	cfg, err := LoadConfig(writeConfig(t, `
data_dir: "/tmp/x"
gateway: {api_key_env: SUMMARYD_TEST_KEY}
models:
  default: {provider: p, id: m}
  small: {p: s}
`))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey())
}

func TestLoadConfig_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing file entirely", content: ""},
		{
			name: "missing data_dir",
			content: `
gateway: {api_key: k}
models:
  default: {provider: p, id: m}
  small: {p: s}
`,
		},
		{
			name: "missing default model",
			content: `
data_dir: "/tmp/x"
gateway: {api_key: k}
models:
  small: {p: s}
`,
		},
		{
			name: "missing small models",
			content: `
data_dir: "/tmp/x"
gateway: {api_key: k}
models:
  default: {provider: p, id: m}
`,
		},
		{
			name: "missing api key",
			content: `
data_dir: "/tmp/x"
models:
  default: {provider: p, id: m}
  small: {p: s}
`,
		},
		{
			name: "bad log level",
			content: `
data_dir: "/tmp/x"
log: {level: shouty}
gateway: {api_key: k}
models:
  default: {provider: p, id: m}
  small: {p: s}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			if tt.content == "" {
				path = filepath.Join(t.TempDir(), "absent.yaml")
			} else {
				path = writeConfig(t, tt.content)
			}
			_, err := LoadConfig(path)
			require.Error(t, err)
		})
	}
}
