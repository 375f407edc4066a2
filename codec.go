// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"encoding/json"
	"fmt"
)

// Codec encodes/decodes response and bridge payloads
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// JSONCodec decodes restserver.php replies and bridge envelopes
type JSONCodec struct{}

func (JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// BinaryCodec carries pre-encoded bridge envelopes as raw bytes
type BinaryCodec struct{}

func (BinaryCodec) Encode(v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("binary codec: cannot encode %T", v)
	}
	return b, nil
}

// Decode copies data; callers may reuse the source buffer.
func (BinaryCodec) Decode(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("binary codec: cannot decode into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

// Binary passes envelope bytes through unchanged
var Binary Codec = BinaryCodec{}
