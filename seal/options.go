// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package seal

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

type options struct {
	withSalt       string
	withIterations int
	withKeyCache   *KeyCache
	withMaxSize    int
}

func defaults() options {
	return options{
		withSalt:       DefaultSalt,
		withIterations: DefaultIterations,
		withMaxSize:    MaxEnvelopeSize,
	}
}

func getOpts(opt ...Option) options {
	opts := defaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithSalt overrides DefaultSalt. Envelopes sealed with one salt can't be
// opened with another.
func WithSalt(salt string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withSalt = salt
		}
	}
}

// WithIterations overrides DefaultIterations. Values below
// DefaultIterations are rejected.
func WithIterations(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withIterations = n
		}
	}
}

// WithKeyCache provides a cache for derived keys.
func WithKeyCache(c *KeyCache) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withKeyCache = c
		}
	}
}

// WithMaxSize lowers the encoded size ceiling below MaxEnvelopeSize, e.g. to
// leave room for the cookie name and attributes.
func WithMaxSize(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withMaxSize = n
		}
	}
}
