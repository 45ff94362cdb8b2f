// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"time"

	"github.com/hashicorp/cap-entra/jwt"
	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithNow provides an optional func for determining what the current time it
// is for: FlowState, Provider.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		switch v := o.(type) {
		case *flowStateOptions:
			v.withNowFunc = now
		case *providerOptions:
			v.withNowFunc = now
		}
	}
}

// WithExpirySkew provides an optional expiry skew duration for: FlowState.
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*flowStateOptions); ok {
			v.withExpirySkew = d
		}
	}
}

// WithScopes provides an optional list of scopes for: Config, Provider.Refresh.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withScopes = scopes
		case *refreshOptions:
			v.withScopes = scopes
		}
	}
}

// WithLogger provides an optional logger for: Provider.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*providerOptions); ok && l != nil {
			v.withLogger = l
		}
	}
}

// WithKeySet provides an optional key set used to verify id_tokens for:
// Provider. By default the tenant's JWKS endpoint is used.
func WithKeySet(ks jwt.KeySet) Option {
	return func(o interface{}) {
		if v, ok := o.(*providerOptions); ok {
			v.withKeySet = ks
		}
	}
}
