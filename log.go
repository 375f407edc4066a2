// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "RESTAPI_LOG_LEVEL"
	EnvLogNoColor = "RESTAPI_LOG_NOCOLOR"
)

// EventLog is fired on the event bus for every diagnostic log line.
const EventLog = "log"

// LogConfig configures NewLogger.
type LogConfig struct {
	Level     string `toml:"level" yaml:"level"`
	NoColor   bool   `toml:"no_color" yaml:"no_color"`
	Timestamp bool   `toml:"timestamp" yaml:"timestamp"`
}

// EventBus receives diagnostic events.
type EventBus interface {
	Fire(event string, args ...any)
}

// EventBusFunc adapts a function to EventBus.
type EventBusFunc func(event string, args ...any)

func (f EventBusFunc) Fire(event string, args ...any) { f(event, args...) }

// NewLogger builds a console logger tagged with app. Environment variables
// override cfg.
func NewLogger(app string, cfg LogConfig) zerolog.Logger {
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	level, ok := parseLevel(os.Getenv(EnvLogLevel))
	if !ok {
		level, ok = parseLevel(cfg.Level)
	}
	if !ok {
		level = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	ctx := zerolog.New(output).Level(level).With().Str("app", app)
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// diag writes a debug line and mirrors it onto the bus.
type diag struct {
	log zerolog.Logger
	bus EventBus
}

func (d diag) debug(msg string, kv ...any) {
	d.log.Debug().Fields(kv).Msg(msg)
	d.fire(msg, kv)
}

func (d diag) warn(msg string, kv ...any) {
	d.log.Warn().Fields(kv).Msg(msg)
	d.fire(msg, kv)
}

func (d diag) fire(msg string, kv []any) {
	if d.bus == nil {
		return
	}
	d.bus.Fire(EventLog, append([]any{msg}, kv...)...)
}
