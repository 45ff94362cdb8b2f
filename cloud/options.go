// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloud

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

type endpointOptions struct {
	withAuthorityHost string
}

func endpointDefaults() endpointOptions {
	return endpointOptions{}
}

func getEndpointOpts(opt ...Option) endpointOptions {
	opts := endpointDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithAuthorityHost replaces the scheme and login host of the authority
// endpoints (authorize, token, logout, jwks). The graph endpoint is not
// affected. It's intended for test providers and authority proxies; the url
// must be an absolute http(s) url without a path.
func WithAuthorityHost(url string) Option {
	return func(o interface{}) {
		if o, ok := o.(*endpointOptions); ok {
			o.withAuthorityHost = url
		}
	}
}
