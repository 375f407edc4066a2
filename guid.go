// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a random id usable as an identifier fragment.
func NewID() string {
	id := uuid.New()
	return "f" + hex.EncodeToString(id[:])
}
