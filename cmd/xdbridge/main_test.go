// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/luxfi/restapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	conf, err := loadConfig(&Config{})
	require.NoError(t, err)
	assert.Equal(t, defaultAddr, conf.Bridge.Addr)
	assert.Equal(t, restapi.DefaultTransport, conf.Bridge.Transport)
	assert.Equal(t, restapi.DefaultHTTPTimeout, conf.HTTPTimeout)
}

func TestLoadConfigFlagsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xdbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_timeout = "5s"

[bridge]
addr = "127.0.0.1:9500"
transport = "grpc"
`), 0o600))

	conf, err := loadConfig(&Config{File: path})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9500", conf.Bridge.Addr)
	assert.Equal(t, restapi.TransportGRPC, conf.Bridge.Transport)

	conf, err = loadConfig(&Config{File: path, Addr: "127.0.0.1:0", Transport: restapi.TransportZAP})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", conf.Bridge.Addr)
	assert.Equal(t, restapi.TransportZAP, conf.Bridge.Transport)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(&Config{File: filepath.Join(t.TempDir(), "absent.toml")})
	assert.Error(t, err)
}
