// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultCallbackPrefix is prepended to the request id to form the JSONP
// callback name.
const DefaultCallbackPrefix = "restapi.callbacks."

// Script is an injected script element.
type Script interface {
	Remove()
}

// ScriptSink receives the payload a loaded script hands to its callback.
type ScriptSink interface {
	Deliver(callback string, payload []byte) error
}

// Document injects scripts. The loaded script reports back through sink.
type Document interface {
	InjectScript(src string, sink ScriptSink) (Script, error)
}

type pendingScript struct {
	ch     chan Result
	script Script
	done   bool
	stop   func() bool
}

// ScriptTransport delivers calls as JSONP script loads. It is limited to a
// GET of at most maxURL bytes.
type ScriptTransport struct {
	endpoint string
	prefix   string
	maxURL   int
	sign     func(Params) Params
	doc      Document
	newID    func() string
	diag     diag

	mu        sync.Mutex
	callbacks map[string]*pendingScript
}

func newScriptTransport(endpoint, prefix string, maxURL int, sign func(Params) Params, doc Document, d diag) *ScriptTransport {
	if prefix == "" {
		prefix = DefaultCallbackPrefix
	}
	return &ScriptTransport{
		endpoint:  endpoint,
		prefix:    prefix,
		maxURL:    maxURL,
		sign:      sign,
		doc:       doc,
		newID:     NewID,
		diag:      d,
		callbacks: make(map[string]*pendingScript),
	}
}

func (t *ScriptTransport) Name() string { return "script" }

// Send fails synchronously when no document is available or the URL is too
// long; nothing is registered in either case. Cancelling ctx drops the
// pending callback and removes the script.
func (t *ScriptTransport) Send(ctx context.Context, params Params) (<-chan Result, error) {
	if t.doc == nil {
		return nil, ErrNoDocument
	}
	id := t.newID()
	callback := t.prefix + id
	signed := t.sign(Copy(Params{ParamCallback: callback}, params, false))

	src := t.endpoint + "?" + EncodeQuery(signed, "&", true)
	if len(src) > t.maxURL {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(src), t.maxURL)
	}

	p := &pendingScript{ch: make(chan Result, 1)}
	t.mu.Lock()
	t.callbacks[id] = p
	t.mu.Unlock()

	script, err := t.doc.InjectScript(src, t)
	if err != nil {
		t.mu.Lock()
		delete(t.callbacks, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("inject script: %w", err)
	}

	t.mu.Lock()
	p.script = script
	delivered := p.done
	if !delivered {
		p.stop = context.AfterFunc(ctx, func() { t.cancel(id, ctx.Err()) })
	}
	t.mu.Unlock()
	if delivered {
		script.Remove()
	}
	t.diag.debug("script injected", "id", id, "bytes", len(src))
	return p.ch, nil
}

// Deliver is called by the loaded script with its JSON payload. Each
// callback fires at most once.
func (t *ScriptTransport) Deliver(callback string, payload []byte) error {
	id := strings.TrimPrefix(callback, t.prefix)
	p := t.take(id)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCallback, callback)
	}
	resp, err := decodeResponse(payload)
	p.ch <- Result{Response: resp, Err: err}
	return nil
}

// Pending reports the number of registered callbacks.
func (t *ScriptTransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.callbacks)
}

func (t *ScriptTransport) cancel(id string, cause error) {
	if p := t.take(id); p != nil {
		p.ch <- Result{Err: cause}
	}
}

// take removes the entry for id and its script element.
func (t *ScriptTransport) take(id string) *pendingScript {
	t.mu.Lock()
	p, ok := t.callbacks[id]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.callbacks, id)
	p.done = true
	script, stop := p.script, p.stop
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
	if script != nil {
		script.Remove()
	}
	return p
}

// HTTPDocument loads script sources over HTTP and evaluates JSONP bodies
// of the form name(<json>);
type HTTPDocument struct {
	Client *http.Client
	Logger zerolog.Logger
}

type scriptFunc func()

func (f scriptFunc) Remove() { f() }

func (d *HTTPDocument) InjectScript(src string, sink ScriptSink) (Script, error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	go func() {
		resp, err := client.Do(req)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.Logger.Warn().Err(err).Msg("script load failed")
			}
			return
		}
		defer CleanlyCloseBody(resp.Body)
		if resp.StatusCode >= 400 {
			d.Logger.Warn().Int("status", resp.StatusCode).Msg("script load failed")
			return
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			d.Logger.Warn().Err(err).Msg("script read failed")
			return
		}
		name, payload, err := ParseJSONP(body)
		if err != nil {
			d.Logger.Warn().Err(err).Msg("script evaluation failed")
			return
		}
		if err := sink.Deliver(name, payload); err != nil {
			d.Logger.Debug().Err(err).Msg("script callback dropped")
		}
	}()
	return scriptFunc(cancel), nil
}

// ParseJSONP splits a name(<json>); body into the callback name and payload.
func ParseJSONP(body []byte) (string, []byte, error) {
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte(";"))
	body = bytes.TrimSpace(body)
	open := bytes.IndexByte(body, '(')
	if open <= 0 || body[len(body)-1] != ')' {
		return "", nil, fmt.Errorf("not a jsonp body")
	}
	name := strings.TrimSpace(string(body[:open]))
	return name, body[open+1 : len(body)-1], nil
}
