// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDomain       = "https://api.facebook.com/"
	DefaultHTTPTimeout  = 200 * time.Second
	DefaultMaxURLLength = 2000

	// EndpointPath is the REST entry point under the API domain.
	EndpointPath = "restserver.php"
)

// Config holds the client settings.
type Config struct {
	APIKey       string        `toml:"api_key" yaml:"api_key"`
	Domain       string        `toml:"domain" yaml:"domain"`
	Format       string        `toml:"format" yaml:"format"`
	Version      string        `toml:"version" yaml:"version"`
	HTTPTimeout  time.Duration `toml:"http_timeout" yaml:"http_timeout"`
	MaxURLLength int           `toml:"max_url_length" yaml:"max_url_length"`

	// ServerHTTP marks a host with a native HTTP client; the server-side
	// transport is then used for every call.
	ServerHTTP bool `toml:"server_http" yaml:"server_http"`

	Bridge BridgeConfig   `toml:"bridge" yaml:"bridge"`
	Log    LogConfig      `toml:"log" yaml:"log"`
	Extra  map[string]any `toml:"extra" yaml:"extra"`
}

// BridgeConfig locates the plugin bridge host.
type BridgeConfig struct {
	Addr      string `toml:"addr" yaml:"addr"`
	Transport string `toml:"transport" yaml:"transport"`
}

// DefaultConfig returns the settings used when a file leaves keys unset.
func DefaultConfig() Config {
	return Config{
		Domain:       DefaultDomain,
		Format:       DefaultFormat,
		Version:      DefaultVersion,
		HTTPTimeout:  DefaultHTTPTimeout,
		MaxURLLength: DefaultMaxURLLength,
		Bridge: BridgeConfig{
			Transport: DefaultTransport,
		},
		Log: LogConfig{Level: "info", Timestamp: true},
	}
}

// LoadConfig reads a .toml, .yaml or .yml file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		for _, key := range meta.Undecoded() {
			// extra is free-form
			if len(key) > 0 && key[0] == "extra" {
				continue
			}
			return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, key.String())
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("config load failed (%s): unsupported extension", path)
	}
	if err := cfg.validateFile(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first setting that keeps a client from being built.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return c.validateFile()
}

// validateFile checks everything a bridge host also reads; the API key is
// only required by clients.
func (c Config) validateFile() error {
	if c.Domain != "" {
		u, err := url.Parse(c.Domain)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: invalid domain %q", c.Domain)
		}
	}
	if c.MaxURLLength < 0 {
		return fmt.Errorf("config: max_url_length must not be negative")
	}
	if c.Bridge.Transport != "" && !HasTransport(c.Bridge.Transport) {
		return fmt.Errorf("config: unknown bridge transport %q", c.Bridge.Transport)
	}
	return nil
}

// Endpoint is the full restserver.php URL.
func (c Config) Endpoint() string {
	domain := c.Domain
	if domain == "" {
		domain = DefaultDomain
	}
	if !strings.HasSuffix(domain, "/") {
		domain += "/"
	}
	return domain + EndpointPath
}

// Registry returns the extra settings as a tree, with defaults filled in
// for the keys the client reads.
func (c Config) Registry() (Tree, error) {
	t := cloneTree(c.Extra)
	if _, err := t.Copy("script", map[string]any{"callback_prefix": DefaultCallbackPrefix}, false); err != nil {
		return nil, err
	}
	return t, nil
}

func (c Config) maxURLLength() int {
	if c.MaxURLLength == 0 {
		return DefaultMaxURLLength
	}
	return c.MaxURLLength
}

func (c Config) httpTimeout() time.Duration {
	if c.HTTPTimeout <= 0 {
		return DefaultHTTPTimeout
	}
	return c.HTTPTimeout
}
