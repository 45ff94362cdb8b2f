// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

// IdToken is an oidc id_token
type IdToken string

// RedactedIdToken is the redacted string or json for an oidc id_token
const RedactedIdToken = "[REDACTED: id_token]"

// String will redact the token
func (t IdToken) String() string {
	return RedactedIdToken
}

// MarshalJSON will redact the token
func (t IdToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedIdToken)
}

// AccessToken is an oauth access_token
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}

// RefreshToken is an oauth refresh_token
type RefreshToken string

// RedactedRefreshToken is the redacted string or json for an oauth refresh_token
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String will redact the token
func (t RefreshToken) String() string {
	return RedactedRefreshToken
}

// MarshalJSON will redact the token
func (t RefreshToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedRefreshToken)
}

const expirySkew = 10 * time.Second

// Token is the result of a code exchange or refresh. Its token fields redact
// themselves when printed or marshaled.
type Token struct {
	AccessToken  AccessToken
	TokenType    string
	RefreshToken RefreshToken
	IdToken      IdToken
	Expiry       time.Time
	ExpiresIn    int64
	Scope        string
}

// NewToken creates a Token from the oauth2 token returned by the token
// endpoint. The id_token and scope come from the token's extra fields.
func NewToken(t *oauth2.Token) *Token {
	if t == nil {
		return nil
	}
	tk := &Token{
		AccessToken:  AccessToken(t.AccessToken),
		TokenType:    t.Type(),
		RefreshToken: RefreshToken(t.RefreshToken),
		Expiry:       t.Expiry,
		ExpiresIn:    t.ExpiresIn,
	}
	if v, ok := t.Extra("id_token").(string); ok {
		tk.IdToken = IdToken(v)
	}
	if v, ok := t.Extra("scope").(string); ok {
		tk.Scope = v
	}
	return tk
}

// Expired reports whether the access token expires within a small skew of
// now. A zero Expiry never expires.
func (t *Token) Expired(now time.Time) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return t.Expiry.Round(0).Before(now.Add(expirySkew))
}

// Valid reports whether the token has an unexpired access token.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return !t.Expired(now)
}
