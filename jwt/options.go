// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import "time"

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

// DefaultClockSkew is the leeway applied to exp, nbf and iat.
const DefaultClockSkew = 60 * time.Second

type validatorOptions struct {
	withAllowedAudiences []string
	withAuthorizedParty  []string
	withAllowV1Issuer    bool
	withClockSkew        time.Duration
	withNowFunc          func() time.Time
	withSigningAlgs      []Alg
}

func validatorDefaults() validatorOptions {
	return validatorOptions{
		withClockSkew:   DefaultClockSkew,
		withNowFunc:     time.Now,
		withSigningAlgs: []Alg{RS256},
	}
}

// getValidatorOpts gets the defaults and applies the opt overrides passed
// in.
func getValidatorOpts(opt ...Option) validatorOptions {
	opts := validatorDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithAllowedAudiences adds audiences accepted besides the client id.
func WithAllowedAudiences(aud ...string) Option {
	return func(o interface{}) {
		if v, ok := o.(*validatorOptions); ok {
			v.withAllowedAudiences = append(v.withAllowedAudiences, aud...)
		}
	}
}

// WithAuthorizedParty pins the client ids allowed to have requested the
// token (the azp claim, or appid for v1 tokens).
func WithAuthorizedParty(clientIDs ...string) Option {
	return func(o interface{}) {
		if v, ok := o.(*validatorOptions); ok {
			v.withAuthorizedParty = append(v.withAuthorizedParty, clientIDs...)
		}
	}
}

// WithAllowV1Issuer accepts v1 (sts) issuers in addition to v2 issuers.
func WithAllowV1Issuer() Option {
	return func(o interface{}) {
		if v, ok := o.(*validatorOptions); ok {
			v.withAllowV1Issuer = true
		}
	}
}

// WithClockSkew overrides DefaultClockSkew. Negative values are treated as
// zero.
func WithClockSkew(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*validatorOptions); ok {
			if d < 0 {
				d = 0
			}
			v.withClockSkew = d
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if v, ok := o.(*validatorOptions); ok && now != nil {
			v.withNowFunc = now
		}
	}
}

// WithSigningAlgorithms overrides the accepted signature algorithms, which
// default to RS256.
func WithSigningAlgorithms(algs ...Alg) Option {
	return func(o interface{}) {
		if v, ok := o.(*validatorOptions); ok {
			v.withSigningAlgs = algs
		}
	}
}
