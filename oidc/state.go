// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/subtle"
	"fmt"
	"time"
)

// DefaultFlowStateTTL is the lifetime of a sign-in attempt.
const DefaultFlowStateTTL = 10 * time.Minute

// DefaultStateExpirySkew defines a default time skew when checking a
// FlowState's expiration.
const DefaultStateExpirySkew = 1 * time.Second

// FlowState represents one sign-in attempt. It's sealed into a short lived
// cookie when the attempt starts and consumed exactly once by the callback.
// State and Nonce are never equal; Verifier never leaves the sealed cookie.
type FlowState struct {
	Verifier  string    `json:"verifier"`
	State     string    `json:"state"`
	Nonce     string    `json:"nonce"`
	ReturnTo  string    `json:"return_to,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewFlowState creates a FlowState with a fresh PKCE verifier, state and
// nonce that expires after ttl.
//
// Supported options:
//   - WithReturnTo
//   - WithNow
func NewFlowState(ttl time.Duration, opt ...Option) (*FlowState, error) {
	const op = "oidc.NewFlowState"
	if ttl <= 0 {
		return nil, fmt.Errorf("%s: ttl not greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getFlowStateOpts(opt...)

	v, err := NewCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	state, err := NewState()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	nonce, err := NewNonce()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if state == nonce {
		return nil, fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrIdGeneratorFailed)
	}
	returnTo := opts.withReturnTo
	if returnTo == "" {
		returnTo = "/"
	}
	return &FlowState{
		Verifier:  v.Verifier(),
		State:     state,
		Nonce:     nonce,
		ReturnTo:  returnTo,
		ExpiresAt: opts.withNowFunc().Add(ttl),
	}, nil
}

// CodeVerifier returns the PKCE verifier of the flow.
func (s *FlowState) CodeVerifier() (CodeVerifier, error) {
	return NewS256VerifierFrom(s.Verifier)
}

// IsExpired returns true if the flow state has expired. Supports the WithNow
// and WithExpirySkew options; the skew defaults to DefaultStateExpirySkew.
func (s *FlowState) IsExpired(opt ...Option) bool {
	opts := getFlowStateOpts(opt...)
	return !s.ExpiresAt.After(opts.withNowFunc().Add(opts.withExpirySkew))
}

// Validate checks that the flow state is complete and unexpired.
func (s *FlowState) Validate(opt ...Option) error {
	const op = "FlowState.Validate"
	switch {
	case s == nil:
		return fmt.Errorf("%s: flow state is nil: %w", op, ErrStateMissing)
	case s.State == "":
		return fmt.Errorf("%s: %w", op, ErrStateMissing)
	case s.Nonce == "":
		return fmt.Errorf("%s: %w", op, ErrNonceMissing)
	case s.Verifier == "":
		return fmt.Errorf("%s: verifier is missing: %w", op, ErrInvalidParameter)
	case s.State == s.Nonce:
		return fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	case s.IsExpired(opt...):
		return fmt.Errorf("%s: %w", op, ErrExpiredState)
	}
	return nil
}

// ValidateState compares the state returned by the provider to the state the
// attempt started with. A missing value on either side is reported as
// ErrStateMissing, a difference as ErrStateMismatch. The comparison is
// constant time.
func ValidateState(received, expected string) error {
	const op = "oidc.ValidateState"
	if received == "" || expected == "" {
		return fmt.Errorf("%s: %w", op, ErrStateMissing)
	}
	if subtle.ConstantTimeCompare([]byte(received), []byte(expected)) != 1 {
		return fmt.Errorf("%s: %w", op, ErrStateMismatch)
	}
	return nil
}

// ValidateNonce compares the nonce of an id_token to the nonce the attempt
// started with.
func ValidateNonce(received, expected string) error {
	const op = "oidc.ValidateNonce"
	if received == "" || expected == "" {
		return fmt.Errorf("%s: %w", op, ErrNonceMissing)
	}
	if subtle.ConstantTimeCompare([]byte(received), []byte(expected)) != 1 {
		return fmt.Errorf("%s: %w", op, ErrInvalidNonce)
	}
	return nil
}

// flowStateOptions is the set of available options for FlowState functions
type flowStateOptions struct {
	withNowFunc    func() time.Time
	withExpirySkew time.Duration
	withReturnTo   string
}

// flowStateDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func flowStateDefaults() flowStateOptions {
	return flowStateOptions{
		withNowFunc:    time.Now,
		withExpirySkew: DefaultStateExpirySkew,
	}
}

// getFlowStateOpts gets the defaults and applies the opt overrides passed in
func getFlowStateOpts(opt ...Option) flowStateOptions {
	opts := flowStateDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithReturnTo provides the already validated path the user returns to after
// the callback, for: NewFlowState.
func WithReturnTo(path string) Option {
	return func(o interface{}) {
		if v, ok := o.(*flowStateOptions); ok {
			v.withReturnTo = path
		}
	}
}
