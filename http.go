// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	maxErrorBody = 512
	getCacheTTL  = 10 * time.Minute
)

// newHTTPClient creates the client used by the server-side transport.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	// Drain any remaining data to allow connection reuse
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// selectMethod picks GET with the query appended unless the combined url
// and body exceed limit, in which case the body is POSTed.
func selectMethod(endpoint, body string, limit int) (method, target, payload string) {
	if len(endpoint)+len(body) > limit {
		return http.MethodPost, endpoint, body
	}
	return http.MethodGet, endpoint + "?" + body, ""
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// HTTPTransport calls restserver.php with a native HTTP client and blocks
// until the reply arrives.
type HTTPTransport struct {
	client   *http.Client
	endpoint string
	maxURL   int
	timeout  time.Duration
	sign     func(Params) Params
	diag     diag
}

func newHTTPTransport(client *http.Client, endpoint string, maxURL int, timeout time.Duration, sign func(Params) Params, d diag) *HTTPTransport {
	return &HTTPTransport{
		client:   client,
		endpoint: endpoint,
		maxURL:   maxURL,
		timeout:  timeout,
		sign:     sign,
		diag:     d,
	}
}

func (t *HTTPTransport) Name() string { return "http" }

// Send performs the exchange before returning; every failure is reported
// synchronously.
func (t *HTTPTransport) Send(ctx context.Context, params Params) (<-chan Result, error) {
	resp, err := t.Do(ctx, params)
	if err != nil {
		return nil, err
	}
	return resolved(Result{Response: resp}), nil
}

// Do signs params and performs one request. A network timeout, including
// the transport's own deadline, is not an error: it yields TimeoutResponse.
// Expiry of ctx is.
func (t *HTTPTransport) Do(ctx context.Context, params Params) (Response, error) {
	reqCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	signed := t.sign(params.Clone())
	body := EncodeQuery(signed, "&", true)
	method, target, body := selectMethod(t.endpoint, body, t.maxURL)

	var (
		req *http.Request
		err error
	)
	switch {
	case truthy(params[ParamMultipart]):
		req, err = t.newMultipartRequest(reqCtx, signed)
	case method == http.MethodPost:
		req, err = http.NewRequestWithContext(reqCtx, method, target, strings.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		req, err = http.NewRequestWithContext(reqCtx, method, target, nil)
		if err == nil {
			req.Header.Set("Cache-Control", fmt.Sprintf("max-age=%d", int(getCacheTTL.Seconds())))
		}
	}
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			t.diag.warn("request timed out", "method", req.Method, "endpoint", t.endpoint)
			return TimeoutResponse(), nil
		}
		return Response{}, fmt.Errorf("failed to issue request: %w", err)
	}
	defer CleanlyCloseBody(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			t.diag.warn("response read timed out", "method", req.Method, "endpoint", t.endpoint)
			return TimeoutResponse(), nil
		}
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	// Return an error for any failing status code
	if resp.StatusCode >= 400 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return Response{}, &StatusError{
			Op:         req.Method + " " + t.endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}
	t.diag.debug("request done", "method", req.Method, "status", resp.StatusCode)
	return decodeResponse(data)
}

func (t *HTTPTransport) newMultipartRequest(ctx context.Context, signed Params) (*http.Request, error) {
	keys := make([]string, 0, len(signed))
	for k, v := range signed {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, k := range keys {
		if err := w.WriteField(k, formatValue(signed[k])); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}
