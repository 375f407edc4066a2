// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseErr(t *testing.T) {
	r := Response{Raw: json.RawMessage(`{"error_code":190,"error_msg":"expired"}`)}
	var apiErr *APIError
	require.ErrorAs(t, r.Err(), &apiErr)
	assert.Equal(t, 190, apiErr.Code)
	assert.Equal(t, "expired", apiErr.Message)

	assert.NoError(t, Response{Raw: json.RawMessage(`{"uid":1}`)}.Err())
	assert.NoError(t, Response{Raw: json.RawMessage(`[1,2]`)}.Err())
	assert.NoError(t, Response{}.Err())
}

func TestResponseIsTrue(t *testing.T) {
	assert.True(t, Response{Raw: json.RawMessage(" true\n")}.IsTrue())
	assert.False(t, Response{Raw: json.RawMessage(`"true"`)}.IsTrue())
	assert.False(t, Response{Raw: json.RawMessage(`1`)}.IsTrue())
}

func TestTimeoutResponse(t *testing.T) {
	r := TimeoutResponse()
	assert.True(t, r.Timeout)
	var got map[string]bool
	require.NoError(t, r.Decode(&got))
	assert.Equal(t, map[string]bool{"timeout": true}, got)
	assert.NoError(t, r.Err())
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('f'), a[0])
	assert.Len(t, a, 33)
}
