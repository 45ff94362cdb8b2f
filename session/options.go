// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"time"

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

// managerOptions is the set of available options for NewManager.
type managerOptions struct {
	withInsecureCookies    bool
	withLogger             hclog.Logger
	withClock              clockwork.Clock
	withErrorPath          string
	withBaseURL            string
	withPostLogoutRedirect string
	withSessionTTL         time.Duration
	withCookieDomain       string
}

func managerDefaults() managerOptions {
	return managerOptions{
		withLogger:     hclog.NewNullLogger(),
		withClock:      clockwork.NewRealClock(),
		withErrorPath:  DefaultErrorPath,
		withSessionTTL: DefaultSessionTTL,
	}
}

func getManagerOpts(opt ...Option) managerOptions {
	opts := managerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithInsecureCookies drops the Secure attribute so cookies work over plain
// http during local development. Never use it in production.
func WithInsecureCookies() Option {
	return func(o interface{}) {
		if v, ok := o.(*managerOptions); ok {
			v.withInsecureCookies = true
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*managerOptions); ok && l != nil {
			v.withLogger = l
		}
	}
}

// WithClock provides an optional clock.
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if v, ok := o.(*managerOptions); ok && c != nil {
			v.withClock = c
		}
	}
}

// WithErrorPath overrides DefaultErrorPath, where failed sign-ins are
// redirected with an error code.
func WithErrorPath(path string) Option {
	return func(o interface{}) {
		if v, ok := o.(*managerOptions); ok {
			v.withErrorPath = path
		}
	}
}

// WithBaseURL sets the application's origin, against which return urls are
// checked. It defaults to the origin of the provider's redirect url.
func WithBaseURL(u string) Option {
	return func(o interface{}) {
		if v, ok := o.(*managerOptions); ok {
			v.withBaseURL = u
		}
	}
}

// WithPostLogoutRedirect sets where the provider sends the browser after
// sign-out.
func WithPostLogoutRedirect(u string) Option {
	return func(o interface{}) {
		if v, ok := o.(*managerOptions); ok {
			v.withPostLogoutRedirect = u
		}
	}
}

// WithSessionTTL overrides DefaultSessionTTL, the lifetime of the refresh
// and user cookies.
func WithSessionTTL(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*managerOptions); ok {
			v.withSessionTTL = d
		}
	}
}

// WithCookieDomain sets the Domain attribute of every cookie. By default
// cookies are host only.
func WithCookieDomain(domain string) Option {
	return func(o interface{}) {
		if v, ok := o.(*managerOptions); ok {
			v.withCookieDomain = domain
		}
	}
}
