// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"

	"github.com/hashicorp/cap-entra/sdk/errkind"
)

var (
	ErrInvalidParameter           = errkind.New(errkind.Configuration, "invalid parameter")
	ErrNilParameter               = errkind.New(errkind.Configuration, "nil parameter")
	ErrInvalidCACert              = errkind.New(errkind.Configuration, "invalid CA certificate")
	ErrUnsupportedChallengeMethod = errkind.New(errkind.Configuration, "unsupported PKCE challenge method")
	ErrUnsupportedClientAuth      = errkind.New(errkind.Configuration, "unsupported client authentication")
	ErrIdGeneratorFailed          = errors.New("id generation failed")

	ErrStateMissing  = errkind.New(errkind.CSRF, "state is missing")
	ErrStateMismatch = errkind.New(errkind.CSRF, "state does not match")
	ErrExpiredState  = errkind.New(errkind.CSRF, "state is expired")

	ErrNonceMissing = errkind.New(errkind.Replay, "nonce is missing")
	ErrInvalidNonce = errkind.New(errkind.Replay, "invalid nonce")

	ErrInvalidReturnURL = errkind.New(errkind.RedirectSafety, "invalid return url")

	ErrTokenExchange  = errkind.New(errkind.TokenExchange, "token request failed")
	ErrMissingIdToken = errkind.New(errkind.TokenExchange, "id_token is missing")
	ErrLoginFailed    = errkind.New(errkind.TokenExchange, "login failed")

	ErrIdTokenVerificationFailed = errkind.New(errkind.TokenValidation, "id_token verification failed")
	ErrInvalidSignature          = errkind.New(errkind.TokenValidation, "invalid signature")
	ErrInvalidAudience           = errkind.New(errkind.TokenValidation, "invalid audience")
	ErrInvalidIssuer             = errkind.New(errkind.TokenValidation, "invalid issuer")
	ErrExpiredToken              = errkind.New(errkind.TokenValidation, "token is expired")
	ErrNotValidYet               = errkind.New(errkind.TokenValidation, "token is not valid yet")
)
