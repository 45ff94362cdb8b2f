// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package errkind defines the closed set of error kinds shared by the
// authentication packages and a static table of browser-safe suggestions for
// each kind.
//
// Sentinel errors in the other packages are *Error values, so the kind of any
// wrapped error can be recovered with Of:
//
//	if errkind.Of(err) == errkind.CAERequired {
//		// retry with claims
//	}
package errkind

import (
	"errors"
	"net/http"
)

// Kind classifies an error.
type Kind int

const (
	Unknown Kind = iota
	Configuration
	CSRF
	Replay
	RedirectSafety
	TokenExchange
	TokenValidation
	CookieCrypto
	CacheConfig
	CAERequired
	NotAuthenticated

	numKinds
)

var kindNames = [numKinds]string{
	Unknown:          "unknown",
	Configuration:    "configuration",
	CSRF:             "protocol-csrf",
	Replay:           "protocol-replay",
	RedirectSafety:   "redirect-safety",
	TokenExchange:    "token-exchange",
	TokenValidation:  "token-validation",
	CookieCrypto:     "cookie-crypto",
	CacheConfig:      "cache-config",
	CAERequired:      "cae-required",
	NotAuthenticated: "not-authenticated",
}

// String returns the kind's name.
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return kindNames[Unknown]
	}
	return kindNames[k]
}

// Suggestion is the user facing description of a Kind. Code and Message are
// generic and safe to echo to a browser; they never contain provider text.
type Suggestion struct {
	// Code is a short machine readable error code.
	Code string

	// Status is the HTTP status class for the kind.
	Status int

	// Message is a generic description of the failure.
	Message string

	// Hint is an operator facing remediation hint. It is meant for logs, not
	// for responses.
	Hint string
}

var suggestions = [numKinds]Suggestion{
	Unknown: {
		Code:    "server_error",
		Status:  http.StatusInternalServerError,
		Message: "An unexpected error occurred.",
		Hint:    "Check the server logs for the wrapped error.",
	},
	Configuration: {
		Code:    "configuration_error",
		Status:  http.StatusInternalServerError,
		Message: "Authentication is not configured correctly.",
		Hint:    "Verify the client id, tenant id, cloud, client credentials and requested scopes.",
	},
	CSRF: {
		Code:    "invalid_state",
		Status:  http.StatusBadRequest,
		Message: "The sign-in request could not be verified.",
		Hint:    "The state parameter was missing or did not match; the flow cookie may have expired or been blocked.",
	},
	Replay: {
		Code:    "invalid_nonce",
		Status:  http.StatusBadRequest,
		Message: "The sign-in response could not be verified.",
		Hint:    "The id_token nonce was missing or did not match the nonce sent with the request.",
	},
	RedirectSafety: {
		Code:    "invalid_return_url",
		Status:  http.StatusBadRequest,
		Message: "The return location is not allowed.",
		Hint:    "Return URLs must be relative or share the application's origin.",
	},
	TokenExchange: {
		Code:    "token_exchange_failed",
		Status:  http.StatusInternalServerError,
		Message: "The identity provider could not issue a token.",
		Hint:    "Inspect the provider error body: check redirect URI registration, client credentials and consent.",
	},
	TokenValidation: {
		Code:    "invalid_token",
		Status:  http.StatusUnauthorized,
		Message: "The presented token is not valid.",
		Hint:    "Check the token's audience, issuer, tenant, authorized party and expiry.",
	},
	CookieCrypto: {
		Code:    "session_error",
		Status:  http.StatusUnauthorized,
		Message: "The session could not be read.",
		Hint:    "The cookie secret may have changed, or the cookie payload is too large or was modified.",
	},
	CacheConfig: {
		Code:    "obo_configuration_error",
		Status:  http.StatusInternalServerError,
		Message: "Delegated access is not configured correctly.",
		Hint:    "Provide exactly one of scopes or resource, and either a client secret or a certificate.",
	},
	CAERequired: {
		Code:    "insufficient_claims",
		Status:  http.StatusUnauthorized,
		Message: "Additional claims are required.",
		Hint:    "Return the claims challenge to the caller so it can acquire a new token.",
	},
	NotAuthenticated: {
		Code:    "not_authenticated",
		Status:  http.StatusUnauthorized,
		Message: "Authentication is required.",
		Hint:    "The session is missing or expired; start a new sign-in.",
	},
}

// Suggestion returns the static suggestion record for the kind.
func (k Kind) Suggestion() Suggestion {
	if k < 0 || k >= numKinds {
		return suggestions[Unknown]
	}
	return suggestions[k]
}

// Error is a sentinel error carrying a Kind. Compare with errors.Is against
// the package level sentinels; recover the kind with Of.
type Error struct {
	Kind Kind
	Msg  string
}

// New creates a sentinel error of the given kind.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Msg: msg}
}

// Error satisfies the error interface.
func (e *Error) Error() string { return e.Msg }

// Of returns the kind of the first *Error found in err's chain, or Unknown.
func Of(err error) Kind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return Unknown
}

// Is reports whether err's chain carries the given kind.
func Is(err error, k Kind) bool {
	return err != nil && Of(err) == k
}
