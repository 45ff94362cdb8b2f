// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package obo

import "github.com/hashicorp/cap-entra/sdk/errkind"

var (
	ErrInvalidParameter = errkind.New(errkind.Configuration, "invalid parameter")
	ErrNilParameter     = errkind.New(errkind.Configuration, "nil parameter")

	// ErrInvalidConfig is returned for on-behalf-of misconfiguration:
	// missing client credentials, or not exactly one of scopes and resource.
	// It's detected before any request is made.
	ErrInvalidConfig = errkind.New(errkind.CacheConfig, "invalid on-behalf-of configuration")

	ErrMissingAssertion = errkind.New(errkind.TokenValidation, "assertion is missing")
	ErrInvalidAssertion = errkind.New(errkind.TokenValidation, "assertion is not valid")

	// ErrCAERequired is wrapped by *CAERequiredError.
	ErrCAERequired = errkind.New(errkind.CAERequired, "additional claims are required")
)
