// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"errors"
	"fmt"
)

var (
	ErrPayloadTooLarge      = errors.New("restapi: request exceeds url length limit")
	ErrTransportUnavailable = errors.New("restapi: no transport available for this call")
	ErrNoDocument           = errors.New("restapi: no document to inject scripts into")
	ErrUnknownCallback      = errors.New("restapi: unknown callback")
	ErrMissingAPIKey        = errors.New("restapi: api key is required")
)

// StatusError is returned for HTTP responses with status >= 400.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: received status code: %d", e.Op, e.StatusCode)
}

// APIError is the error object restserver.php returns in a 200 response.
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}
