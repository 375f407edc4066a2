// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/rs/zerolog"
)

// MethodSendXdHTTPRequest asks the bridge host to perform one HTTP request.
const MethodSendXdHTTPRequest = "XdComm.SendXdHttpRequest"

// XdHTTPRequest is the request a bridge host performs on the client's behalf.
type XdHTTPRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    string            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// XdHTTPResult is the host's reply.
type XdHTTPResult struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Bridge is the client side of the plugin bridge. It owns one link and
// that link's table of pending requests; construct it once and share it.
type Bridge struct {
	link Link
}

// NewBridge wraps an established link.
func NewBridge(link Link) *Bridge {
	return &Bridge{link: link}
}

// Ready is closed once the host reports it can take requests.
func (b *Bridge) Ready() <-chan struct{} {
	return b.link.Ready()
}

// WaitReady blocks until the bridge is ready. Only ctx bounds the wait.
func (b *Bridge) WaitReady(ctx context.Context) error {
	select {
	case <-b.link.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendXdHTTPRequest waits for readiness, then has the host perform req.
func (b *Bridge) SendXdHTTPRequest(ctx context.Context, req XdHTTPRequest) (*XdHTTPResult, error) {
	if err := b.WaitReady(ctx); err != nil {
		return nil, err
	}
	payload, err := json2.EncodeClientRequest(MethodSendXdHTTPRequest, &req)
	if err != nil {
		return nil, fmt.Errorf("encode bridge request: %w", err)
	}
	resp, err := b.link.CallRaw(ctx, MethodSendXdHTTPRequest, payload)
	if err != nil {
		return nil, fmt.Errorf("bridge call: %w", err)
	}
	var res XdHTTPResult
	if err := json2.DecodeClientResponse(bytes.NewReader(resp), &res); err != nil {
		return nil, fmt.Errorf("decode bridge response: %w", err)
	}
	return &res, nil
}

// Close closes the underlying link.
func (b *Bridge) Close() error {
	return b.link.Close()
}

// BridgeTransport sends calls through a Bridge.
type BridgeTransport struct {
	bridge   *Bridge
	endpoint string
	maxURL   int
	sign     func(Params) Params
	diag     diag
}

func newBridgeTransport(b *Bridge, endpoint string, maxURL int, sign func(Params) Params, d diag) *BridgeTransport {
	return &BridgeTransport{
		bridge:   b,
		endpoint: endpoint,
		maxURL:   maxURL,
		sign:     sign,
		diag:     d,
	}
}

func (t *BridgeTransport) Name() string { return "bridge" }

// Send defers signing and sending until the bridge is ready.
func (t *BridgeTransport) Send(ctx context.Context, params Params) (<-chan Result, error) {
	if t == nil || t.bridge == nil {
		return nil, ErrTransportUnavailable
	}
	params = params.Clone()
	ch := make(chan Result, 1)
	go func() {
		ch <- t.roundTrip(ctx, params)
	}()
	return ch, nil
}

func (t *BridgeTransport) roundTrip(ctx context.Context, params Params) Result {
	if err := t.bridge.WaitReady(ctx); err != nil {
		return Result{Err: err}
	}
	body := EncodeQuery(t.sign(params), "&", true)
	method, target, body := selectMethod(t.endpoint, body, t.maxURL)

	req := XdHTTPRequest{Method: method, URL: target, Body: body}
	if method == http.MethodPost {
		req.Headers = map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	}
	res, err := t.bridge.SendXdHTTPRequest(ctx, req)
	if err != nil {
		return Result{Err: err}
	}
	t.diag.debug("bridge request done", "method", method, "status", res.Status)
	if res.Status >= 400 {
		return Result{Err: &StatusError{
			Op:         "bridge " + method + " " + t.endpoint,
			StatusCode: res.Status,
			Body:       string(res.Body),
		}}
	}
	resp, err := decodeResponse(res.Body)
	return Result{Response: resp, Err: err}
}

// XdComm is the bridge host handler: it performs HTTP requests for
// bridge clients.
type XdComm struct {
	client *http.Client
	log    zerolog.Logger
}

// NewXdComm returns a host handler. A nil client gets a 200 second timeout.
func NewXdComm(client *http.Client, log zerolog.Logger) *XdComm {
	if client == nil {
		client = newHTTPClient(DefaultHTTPTimeout)
	}
	return &XdComm{client: client, log: log}
}

type serverRequest struct {
	Version string           `json:"jsonrpc"`
	Method  string           `json:"method"`
	Params  *json.RawMessage `json:"params"`
	ID      *json.RawMessage `json:"id"`
}

type serverResponse struct {
	Version string           `json:"jsonrpc"`
	Result  interface{}      `json:"result,omitempty"`
	Error   *json2.Error     `json:"error,omitempty"`
	ID      *json.RawMessage `json:"id"`
}

// Handle is a RawHandler answering JSON-RPC 2.0 envelopes. Failures are
// reported inside the envelope.
func (x *XdComm) Handle(ctx context.Context, method string, payload []byte) ([]byte, error) {
	var req serverRequest
	if err := defaultCodec.Decode(payload, &req); err != nil {
		return x.reply(nil, nil, &json2.Error{Code: json2.E_PARSE, Message: err.Error()})
	}
	if req.Method != MethodSendXdHTTPRequest || method != MethodSendXdHTTPRequest {
		return x.reply(req.ID, nil, &json2.Error{Code: json2.E_NO_METHOD, Message: "method not found: " + req.Method})
	}
	var xr XdHTTPRequest
	if req.Params == nil {
		return x.reply(req.ID, nil, &json2.Error{Code: json2.E_BAD_PARAMS, Message: "missing params"})
	}
	if err := defaultCodec.Decode(*req.Params, &xr); err != nil {
		return x.reply(req.ID, nil, &json2.Error{Code: json2.E_BAD_PARAMS, Message: err.Error()})
	}
	res, err := x.do(ctx, xr)
	if err != nil {
		return x.reply(req.ID, nil, &json2.Error{Code: json2.E_SERVER, Message: err.Error()})
	}
	return x.reply(req.ID, res, nil)
}

func (x *XdComm) do(ctx context.Context, xr XdHTTPRequest) (*XdHTTPResult, error) {
	method := strings.ToUpper(xr.Method)
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("unsupported method %q", xr.Method)
	}
	var body io.Reader
	if xr.Body != "" {
		body = strings.NewReader(xr.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, xr.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range xr.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to issue request: %w", err)
	}
	defer CleanlyCloseBody(resp.Body)
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	recordBridgeRequest(method, resp.StatusCode)
	x.log.Debug().
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("bridge request")
	return &XdHTTPResult{Status: resp.StatusCode, Body: data}, nil
}

func (x *XdComm) reply(id *json.RawMessage, result interface{}, rpcErr *json2.Error) ([]byte, error) {
	if rpcErr != nil {
		x.log.Warn().Str("error", rpcErr.Message).Msg("bridge request rejected")
	}
	return defaultCodec.Encode(&serverResponse{
		Version: "2.0",
		Result:  result,
		Error:   rpcErr,
		ID:      id,
	})
}
