// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryCodecCopies(t *testing.T) {
	src := []byte(`{"jsonrpc":"2.0"}`)
	out, err := Binary.Encode(src)
	require.NoError(t, err)
	assert.Equal(t, src, out)

	var got []byte
	require.NoError(t, Binary.Decode(src, &got))
	src[0] = 'x'
	assert.Equal(t, `{"jsonrpc":"2.0"}`, string(got))
}

func TestBinaryCodecRejectsOtherTypes(t *testing.T) {
	_, err := Binary.Encode("text")
	assert.Error(t, err)
	var s string
	assert.Error(t, Binary.Decode([]byte("x"), &s))
}
