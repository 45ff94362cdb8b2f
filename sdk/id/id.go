// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package id

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DefaultSize is the number of random bytes used by New. 32 bytes encode to
// 43 base64url characters.
const DefaultSize = 32

// Random returns size bytes from crypto/rand encoded as unpadded base64url,
// so the result only contains [A-Za-z0-9_-].
func Random(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("id.Random: size %d must be greater than zero", size)
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("id.Random: unable to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// New generates an ID of DefaultSize random bytes with an optional prefix.
func New(optionalPrefix string) (string, error) {
	id, err := Random(DefaultSize)
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
