// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeFile(t, "restapi.toml", `
api_key = "abc"
domain = "https://api.example.com/"
http_timeout = "30s"
server_http = true

[bridge]
transport = "grpc"

[extra.script]
callback_prefix = "app.cb."
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.APIKey)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.ServerHTTP)
	assert.Equal(t, TransportGRPC, cfg.Bridge.Transport)
	assert.Equal(t, DefaultMaxURLLength, cfg.MaxURLLength)
	assert.Equal(t, "https://api.example.com/restserver.php", cfg.Endpoint())

	reg, err := cfg.Registry()
	require.NoError(t, err)
	node, ok := reg.Lookup("script")
	require.True(t, ok)
	assert.Equal(t, "app.cb.", node["callback_prefix"])
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "restapi.yaml", `
api_key: abc
max_url_length: 1500
log:
  level: debug
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1500, cfg.MaxURLLength)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DefaultFormat, cfg.Format)
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"unknown key", "a.toml", `api_kee = "x"`},
		{"unknown nested key", "f.toml", "[bridge]\nport = 1\n"},
		{"bad domain", "b.toml", `domain = "not a url"`},
		{"bad transport", "c.yaml", "bridge:\n  transport: smoke\n"},
		{"negative limit", "d.yaml", "max_url_length: -1\n"},
		{"unknown extension", "e.json", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigWithoutAPIKey(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "host.toml", "[bridge]\naddr = \"127.0.0.1:9400\"\n"))
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestRegistryDefaults(t *testing.T) {
	reg, err := DefaultConfig().Registry()
	require.NoError(t, err)
	node, ok := reg.Lookup("script")
	require.True(t, ok)
	assert.Equal(t, DefaultCallbackPrefix, node["callback_prefix"])
}

func TestConfigFallbacks(t *testing.T) {
	var cfg Config
	assert.Equal(t, DefaultMaxURLLength, cfg.maxURLLength())
	assert.Equal(t, DefaultHTTPTimeout, cfg.httpTimeout())
	assert.Equal(t, DefaultDomain+EndpointPath, cfg.Endpoint())
}
