// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package clientassertion

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"time"
)

// Option configures a Certificate.
type Option func(*Certificate) error

// WithAlgorithm overrides the RS256 signing algorithm.
func WithAlgorithm(alg RSAlgorithm) Option {
	return func(c *Certificate) error {
		c.alg = alg
		return nil
	}
}

// WithKeyID sets the kid header.
func WithKeyID(keyID string) Option {
	return func(c *Certificate) error {
		c.keyID = keyID
		return nil
	}
}

// WithCertificateChain sets the x5c header, leaf first. Entra requires it for
// subject name and issuer authentication.
func WithCertificateChain(chain ...*x509.Certificate) Option {
	return func(c *Certificate) error {
		x5c := make([]string, 0, len(chain))
		for _, cert := range chain {
			if cert == nil {
				return fmt.Errorf("WithCertificateChain: %w", ErrNilCertificate)
			}
			x5c = append(x5c, base64.StdEncoding.EncodeToString(cert.Raw))
		}
		c.x5c = x5c
		return nil
	}
}

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(c *Certificate) error {
		if d <= 0 {
			return fmt.Errorf("WithLifetime: %w", ErrInvalidLifetime)
		}
		c.lifetime = d
		return nil
	}
}

// WithNow overrides the clock used for the iat, nbf and exp claims.
func WithNow(now func() time.Time) Option {
	return func(c *Certificate) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}
