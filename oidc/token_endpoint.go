// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// MaxTokenResponseSize caps how much of a token endpoint response is read.
const MaxTokenResponseSize = 1 << 20

// Grant types sent to the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// TokenError is an error response from the token endpoint. It always wraps
// ErrTokenExchange. Body holds the provider's response for diagnostics; it's
// not meant to be shown to end users.
type TokenError struct {
	StatusCode    int    `json:"-"`
	Code          string `json:"error"`
	Description   string `json:"error_description,omitempty"`
	ErrorCodes    []int  `json:"error_codes,omitempty"`
	SubError      string `json:"suberror,omitempty"`
	Claims        string `json:"claims,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	TraceID       string `json:"trace_id,omitempty"`
	Body          []byte `json:"-"`
}

// Error satisfies the error interface.
func (e *TokenError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: status %d", ErrTokenExchange.Error(), e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.SubError != "" {
		fmt.Fprintf(&b, " (%s)", e.SubError)
	}
	if e.Description != "" {
		fmt.Fprintf(&b, ": %s", e.Description)
	}
	return b.String()
}

// Unwrap returns ErrTokenExchange.
func (e *TokenError) Unwrap() error { return ErrTokenExchange }

type tokenJSON struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    json.Number `json:"expires_in"`
}

// RequestToken posts a form to the token endpoint and parses the response.
// The id_token, scope and any other response fields are available with the
// token's Extra method. A non 2xx response returns a *TokenError. It never
// retries.
func RequestToken(ctx context.Context, client *http.Client, tokenURL string, form url.Values, now func() time.Time) (*oauth2.Token, error) {
	const op = "oidc.RequestToken"
	if client == nil {
		return nil, fmt.Errorf("%s: http client is nil: %w", op, ErrNilParameter)
	}
	if tokenURL == "" {
		return nil, fmt.Errorf("%s: token url is empty: %w", op, ErrInvalidParameter)
	}
	if now == nil {
		now = time.Now
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %w: %w", op, ErrTokenExchange, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w: %w", op, ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxTokenResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read response: %w: %w", op, ErrTokenExchange, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		tErr := &TokenError{StatusCode: resp.StatusCode, Body: body}
		// an unparsable body still produces a TokenError with the raw body
		_ = json.Unmarshal(body, tErr)
		return nil, fmt.Errorf("%s: %w", op, tErr)
	}

	if ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); ct != "" && ct != "application/json" {
		return nil, fmt.Errorf("%s: unexpected content type %q: %w", op, ct, ErrTokenExchange)
	}
	var tj tokenJSON
	if err := json.Unmarshal(body, &tj); err != nil {
		return nil, fmt.Errorf("%s: unable to parse response: %w: %w", op, ErrTokenExchange, err)
	}
	if tj.AccessToken == "" {
		return nil, fmt.Errorf("%s: response is missing access_token: %w", op, ErrTokenExchange)
	}
	raw := map[string]interface{}{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%s: unable to parse response: %w: %w", op, ErrTokenExchange, err)
	}

	tk := &oauth2.Token{
		AccessToken:  tj.AccessToken,
		TokenType:    tj.TokenType,
		RefreshToken: tj.RefreshToken,
	}
	if tj.ExpiresIn != "" {
		secs, err := tj.ExpiresIn.Int64()
		if err != nil {
			return nil, fmt.Errorf("%s: invalid expires_in %q: %w", op, tj.ExpiresIn, ErrTokenExchange)
		}
		tk.ExpiresIn = secs
		tk.Expiry = now().Add(time.Duration(secs) * time.Second)
	}
	return tk.WithExtra(raw), nil
}
