// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package obo

import (
	"net/http"

	"github.com/hashicorp/cap-entra/jwt"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
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

// exchangerOptions is the set of available options for NewExchanger.
type exchangerOptions struct {
	withCache         *TokenCache
	withCacheSet      bool
	withLogger        hclog.Logger
	withHTTPClient    *http.Client
	withKeySet        jwt.KeySet
	withAuthorityHost string
	withClock         clockwork.Clock
}

func exchangerDefaults() exchangerOptions {
	return exchangerOptions{
		withLogger: hclog.NewNullLogger(),
		withClock:  clockwork.NewRealClock(),
	}
}

func getExchangerOpts(opt ...Option) exchangerOptions {
	opts := exchangerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithCache provides the token cache shared by exchanges. Without it a
// private cache with the default size and buffer is created; a nil cache
// disables caching.
func WithCache(c *TokenCache) Option {
	return func(o interface{}) {
		if v, ok := o.(*exchangerOptions); ok {
			v.withCache = c
			v.withCacheSet = true
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *exchangerOptions:
			v.withLogger = l
		case *retryOptions:
			v.withLogger = l
		}
	}
}

// WithHTTPClient provides the client used for token and key requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if v, ok := o.(*exchangerOptions); ok {
			v.withHTTPClient = c
		}
	}
}

// WithKeySet provides the key set used to verify assertions instead of the
// tenant's JWKS.
func WithKeySet(ks jwt.KeySet) Option {
	return func(o interface{}) {
		if v, ok := o.(*exchangerOptions); ok {
			v.withKeySet = ks
		}
	}
}

// WithAuthorityHost replaces the cloud's login host (scheme and host) of the
// token and JWKS endpoints.
func WithAuthorityHost(u string) Option {
	return func(o interface{}) {
		if v, ok := o.(*exchangerOptions); ok {
			v.withAuthorityHost = u
		}
	}
}

// WithClock provides an optional clock.
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if c == nil {
			return
		}
		switch v := o.(type) {
		case *exchangerOptions:
			v.withClock = c
		case *cacheOptions:
			v.withClock = c
		}
	}
}

// retryOptions is the set of available options for WithCAERetry.
type retryOptions struct {
	withMaxRetries     int
	withThrowOnFailure bool
	withLogger         hclog.Logger
}

func retryDefaults() retryOptions {
	return retryOptions{
		withMaxRetries:     DefaultMaxRetries,
		withThrowOnFailure: true,
		withLogger:         hclog.NewNullLogger(),
	}
}

func getRetryOpts(opt ...Option) retryOptions {
	opts := retryDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithMaxRetries sets how many times a failed operation that isn't a CAE
// condition is retried. Negative values are treated as zero.
func WithMaxRetries(n int) Option {
	return func(o interface{}) {
		if v, ok := o.(*retryOptions); ok {
			if n < 0 {
				n = 0
			}
			v.withMaxRetries = n
		}
	}
}

// WithThrowOnFailure controls whether a CAE condition is returned to the
// caller (the default) or logged and replaced with the zero value.
func WithThrowOnFailure(throw bool) Option {
	return func(o interface{}) {
		if v, ok := o.(*retryOptions); ok {
			v.withThrowOnFailure = throw
		}
	}
}

// cacheOptions is the set of available options for NewTokenCache.
type cacheOptions struct {
	withClock clockwork.Clock
}

func cacheDefaults() cacheOptions {
	return cacheOptions{
		withClock: clockwork.NewRealClock(),
	}
}

func getCacheOpts(opt ...Option) cacheOptions {
	opts := cacheDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
