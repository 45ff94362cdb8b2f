// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"

	"github.com/hashicorp/cap-entra/sdk/id"
)

// DefaultIDLength is the length of the ids returned by NewState and NewNonce:
// 32 random bytes, base64url encoded without padding.
const DefaultIDLength = 43

// NewState generates an opaque state value for one authorization request.
func NewState() (string, error) {
	const op = "oidc.NewState"
	s, err := id.Random(id.DefaultSize)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate state: %w: %w", op, ErrIdGeneratorFailed, err)
	}
	return s, nil
}

// NewNonce generates a nonce to bind an id_token to one authorization
// request.
func NewNonce() (string, error) {
	const op = "oidc.NewNonce"
	n, err := id.Random(id.DefaultSize)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate nonce: %w: %w", op, ErrIdGeneratorFailed, err)
	}
	return n, nil
}
