// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var timeoutPayload = json.RawMessage(`{"timeout":true}`)

// Response is a decoded restserver.php reply.
//
// Timeout is set when the server-side HTTP transport hit its network
// timeout; Raw is then {"timeout":true} and carries no API data.
type Response struct {
	Raw     json.RawMessage
	Timeout bool
}

// Result is the single value a transport delivers per request.
type Result struct {
	Response Response
	Err      error
}

// TimeoutResponse is the soft-failure reply for a timed out HTTP exchange.
func TimeoutResponse() Response {
	return Response{Raw: timeoutPayload, Timeout: true}
}

// Decode unmarshals the raw payload into v.
func (r Response) Decode(v interface{}) error {
	return defaultCodec.Decode(r.Raw, v)
}

// Err returns an *APIError when the payload is a restserver error object.
func (r Response) Err() error {
	trimmed := bytes.TrimSpace(r.Raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var probe struct {
		Code    *int   `json:"error_code"`
		Message string `json:"error_msg"`
	}
	if err := defaultCodec.Decode(trimmed, &probe); err != nil || probe.Code == nil {
		return nil
	}
	return &APIError{Code: *probe.Code, Message: probe.Message}
}

// IsTrue reports whether the payload is the JSON literal true.
func (r Response) IsTrue() bool {
	return bytes.Equal(bytes.TrimSpace(r.Raw), []byte("true"))
}

func decodeResponse(body []byte) (Response, error) {
	var raw json.RawMessage
	if err := defaultCodec.Decode(body, &raw); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return Response{Raw: raw}, nil
}

func resolved(r Result) <-chan Result {
	ch := make(chan Result, 1)
	ch <- r
	return ch
}
