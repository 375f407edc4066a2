// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Link is one connection from a bridge client to a bridge host.
type Link interface {
	// Ready is closed once the host has announced it can take requests
	Ready() <-chan struct{}

	// CallRaw sends payload to method and waits for the reply
	CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error)

	// Close closes the connection
	Close() error
}

// BridgeServer is the listening side of a bridge link.
type BridgeServer interface {
	// Serve accepts links until the server is closed or ctx is cancelled
	Serve(ctx context.Context) error

	// Close stops the server
	Close() error

	// Addr returns the server's listen address
	Addr() string
}

// RawHandler handles raw byte bridge calls
type RawHandler func(ctx context.Context, method string, payload []byte) ([]byte, error)

// DialOption configures bridge connections
type DialOption func(*dialOptions)

type dialOptions struct {
	transport string
	logger    zerolog.Logger
}

// WithTransport explicitly sets the link transport
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithDialLogger sets the logger used by the bridge client
func WithDialLogger(l zerolog.Logger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// ServerOption configures bridge hosts
type ServerOption func(*serverOptions)

type serverOptions struct {
	transport string
	logger    zerolog.Logger
}

// WithServerTransport explicitly sets the link transport for the host
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}

// WithServerLogger sets the logger used by the host
func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// DialBridge connects to a bridge host using the default transport (ZAP).
func DialBridge(ctx context.Context, addr string, opts ...DialOption) (*Bridge, error) {
	o := &dialOptions{
		transport: DefaultTransport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.transport == "" {
		o.transport = DefaultTransport
	}

	e, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	link, err := e.dial(ctx, addr, o)
	if err != nil {
		return nil, err
	}
	o.logger.Debug().Str("transport", o.transport).Str("addr", addr).Msg("bridge dialed")
	return NewBridge(link), nil
}

// ListenBridge creates a bridge host listener using the default transport (ZAP).
func ListenBridge(addr string, handler RawHandler, opts ...ServerOption) (BridgeServer, error) {
	o := &serverOptions{
		transport: DefaultTransport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.transport == "" {
		o.transport = DefaultTransport
	}

	e, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	return e.listen(addr, handler, o)
}
