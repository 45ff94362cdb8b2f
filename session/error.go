// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import "github.com/hashicorp/cap-entra/sdk/errkind"

var (
	ErrInvalidParameter = errkind.New(errkind.Configuration, "invalid parameter")
	ErrNilParameter     = errkind.New(errkind.Configuration, "nil parameter")

	// ErrNotAuthenticated is returned when there's no usable session: the
	// cookie is missing, can't be unsealed or has expired, or the provider
	// rejected the refresh token.
	ErrNotAuthenticated = errkind.New(errkind.NotAuthenticated, "not authenticated")
)
