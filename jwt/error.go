// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import "github.com/hashicorp/cap-entra/sdk/errkind"

var (
	ErrInvalidParameter = errkind.New(errkind.Configuration, "invalid parameter")

	ErrInvalidSignature        = errkind.New(errkind.TokenValidation, "invalid token signature")
	ErrExpired                 = errkind.New(errkind.TokenValidation, "token is expired")
	ErrNotValidYet             = errkind.New(errkind.TokenValidation, "token is not valid yet")
	ErrInvalidAudience         = errkind.New(errkind.TokenValidation, "invalid audience")
	ErrInvalidIssuer           = errkind.New(errkind.TokenValidation, "invalid issuer")
	ErrTenantMismatch          = errkind.New(errkind.TokenValidation, "token was issued for another tenant")
	ErrAuthorizedPartyMismatch = errkind.New(errkind.TokenValidation, "authorized party is not allowed")
	ErrMissingClaim            = errkind.New(errkind.TokenValidation, "required claim is missing")
)
