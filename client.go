// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Transport delivers one signed request. An error returned by Send means
// the request failed synchronously; otherwise the channel yields exactly
// one Result.
type Transport interface {
	Name() string
	Send(ctx context.Context, params Params) (<-chan Result, error)
}

var (
	_ Transport = (*HTTPTransport)(nil)
	_ Transport = (*ScriptTransport)(nil)
	_ Transport = (*BridgeTransport)(nil)
)

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	session    SessionSource
	httpClient *http.Client
	document   Document
	bridge     *Bridge
	logger     zerolog.Logger
	bus        EventBus
	now        func() time.Time
	hash       HashFunc
}

// WithSession sets the session source consulted when signing
func WithSession(s SessionSource) Option {
	return func(o *clientOptions) { o.session = s }
}

// WithHTTPClient marks the host as having a native HTTP client and uses c
// for every call. It implies Config.ServerHTTP.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithDocument enables the script transport
func WithDocument(d Document) Option {
	return func(o *clientOptions) { o.document = d }
}

// WithBridge enables the plugin bridge fallback
func WithBridge(b *Bridge) Option {
	return func(o *clientOptions) { o.bridge = b }
}

// WithLogger sets the diagnostic logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithEventBus mirrors diagnostic log lines onto bus
func WithEventBus(bus EventBus) Option {
	return func(o *clientOptions) { o.bus = bus }
}

// WithClock overrides the call_id clock
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) { o.now = now }
}

// WithHash overrides the signature hash
func WithHash(h HashFunc) Option {
	return func(o *clientOptions) { o.hash = h }
}

// Client signs calls and routes them to the transport the host supports.
type Client struct {
	cfg      Config
	registry Tree
	signer   *Signer
	session  SessionSource
	diag     diag

	http   *HTTPTransport
	script *ScriptTransport
	bridge *BridgeTransport
}

// New builds a client. Transports are enabled by the options and
// cfg.ServerHTTP.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &clientOptions{
		logger: zerolog.Nop(),
		now:    time.Now,
		hash:   MD5Hex,
	}
	for _, opt := range opts {
		opt(o)
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		registry: registry,
		session:  o.session,
		diag:     diag{log: o.logger, bus: o.bus},
		signer: &Signer{
			APIKey:  cfg.APIKey,
			Format:  cfg.Format,
			Version: cfg.Version,
			Hash:    o.hash,
			Now:     o.now,
		},
	}

	endpoint := cfg.Endpoint()
	limit := cfg.maxURLLength()
	if cfg.ServerHTTP || o.httpClient != nil {
		hc := o.httpClient
		if hc == nil {
			hc = newHTTPClient(cfg.httpTimeout())
		}
		c.http = newHTTPTransport(hc, endpoint, limit, cfg.httpTimeout(), c.Sign, c.diag)
	}
	if o.document != nil {
		c.script = newScriptTransport(endpoint, c.callbackPrefix(), limit, c.Sign, o.document, c.diag)
	}
	if o.bridge != nil {
		c.bridge = newBridgeTransport(o.bridge, endpoint, limit, c.Sign, c.diag)
	}
	return c, nil
}

// Sign stamps params with the fixed fields and the current session.
func (c *Client) Sign(params Params) Params {
	var s *Session
	if c.session != nil {
		s = c.session.Session()
	}
	return c.signer.Sign(params, s)
}

// Endpoint is the restserver.php URL calls are sent to.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint()
}

// Registry returns the client's settings tree.
func (c *Client) Registry() Tree {
	return c.registry
}

// Script returns the script transport, or nil when no document is set.
func (c *Client) Script() *ScriptTransport {
	return c.script
}

// Call makes one API call and waits for its reply. A Response with
// Timeout set is a soft failure from the server-side HTTP transport.
func (c *Client) Call(ctx context.Context, params Params) (Response, error) {
	r := c.call(ctx, params)
	return r.Response, r.Err
}

// Go makes one API call without blocking. The channel yields exactly one
// Result.
func (c *Client) Go(ctx context.Context, params Params) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- c.call(ctx, params)
	}()
	return ch
}

func (c *Client) call(ctx context.Context, params Params) Result {
	start := time.Now()
	name, ch, err := c.dispatch(ctx, params)
	var r Result
	if err != nil {
		r = Result{Err: err}
	} else {
		r = <-ch
	}
	recordCall(name, r, time.Since(start))
	if r.Err != nil {
		c.diag.debug("call failed", "transport", name, "method", params[ParamMethod], "error", r.Err.Error())
		return r
	}
	c.afterResponse(params, r.Response)
	return r
}

// dispatch picks the transport. The server-side HTTP client is used
// exclusively when present. Otherwise the script transport is tried and
// only a synchronous failure moves the call to the bridge.
func (c *Client) dispatch(ctx context.Context, params Params) (string, <-chan Result, error) {
	if c.http != nil {
		ch, err := c.http.Send(ctx, params)
		return c.http.Name(), ch, err
	}

	scriptErr := ErrNoDocument
	if c.script != nil {
		ch, err := c.script.Send(ctx, params)
		if err == nil {
			return c.script.Name(), ch, nil
		}
		scriptErr = err
	}
	if c.bridge == nil {
		return "", nil, fmt.Errorf("%w: %w", ErrTransportUnavailable, scriptErr)
	}

	fallbacksTotal.Inc()
	c.diag.debug("falling back to bridge", "reason", scriptErr.Error())
	ch, err := c.bridge.Send(ctx, params)
	return c.bridge.Name(), ch, err
}

// afterResponse clears the session once Auth.revokeAuthorization succeeds.
func (c *Client) afterResponse(params Params, resp Response) {
	if params[ParamMethod] != MethodRevokeAuthorization || !resp.IsTrue() {
		return
	}
	if rev, ok := c.session.(SessionRevoker); ok {
		rev.RevokeSession()
		c.diag.debug("session revoked")
	}
}

func (c *Client) callbackPrefix() string {
	if node, ok := c.registry.Lookup("script"); ok {
		if p, ok := node["callback_prefix"].(string); ok && p != "" {
			return p
		}
	}
	return DefaultCallbackPrefix
}
