// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/cap-entra/oidc/clientassertion"
)

// ClientAuth is how a client authenticates at the token endpoint. It's one
// of ClientSecretAuth, CertificateAuth or PublicClient.
type ClientAuth interface {
	clientAuth()
}

// ClientSecretAuth authenticates with a client secret (client_secret_post).
type ClientSecretAuth struct {
	Secret ClientSecret
}

// CertificateAuth authenticates with a signed client assertion
// (private_key_jwt) using the certificate registered for the client.
type CertificateAuth struct {
	// PrivateKey signs the assertion.
	PrivateKey *rsa.PrivateKey

	// Certificate is the registered certificate. Its thumbprint is sent as
	// the x5t header.
	Certificate *x509.Certificate

	// SendCertificateChain adds the certificate as the x5c header, which
	// subject name/issuer authentication requires.
	SendCertificateChain bool
}

// PublicClient sends no client credentials. It can't be used for the
// on-behalf-of flow.
type PublicClient struct{}

func (ClientSecretAuth) clientAuth() {}
func (CertificateAuth) clientAuth()  {}
func (PublicClient) clientAuth()     {}

// String will redact the secret
func (a ClientSecretAuth) String() string {
	return fmt.Sprintf("ClientSecretAuth{Secret: %s}", a.Secret)
}

// ValidateClientAuth checks that auth is one of the supported variants and
// is usable.
func ValidateClientAuth(auth ClientAuth) error {
	const op = "oidc.ValidateClientAuth"
	switch a := auth.(type) {
	case ClientSecretAuth:
		if a.Secret == "" {
			return fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter)
		}
	case *ClientSecretAuth:
		if a == nil {
			return fmt.Errorf("%s: client auth is nil: %w", op, ErrNilParameter)
		}
		return ValidateClientAuth(*a)
	case CertificateAuth:
		if a.Certificate == nil {
			return fmt.Errorf("%s: certificate is nil: %w", op, ErrInvalidParameter)
		}
		if err := clientassertion.RS256.Validate(a.PrivateKey); err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrInvalidParameter, err)
		}
	case *CertificateAuth:
		if a == nil {
			return fmt.Errorf("%s: client auth is nil: %w", op, ErrNilParameter)
		}
		return ValidateClientAuth(*a)
	case PublicClient, *PublicClient:
	case nil:
		return fmt.Errorf("%s: client auth is nil: %w", op, ErrNilParameter)
	default:
		return fmt.Errorf("%s: %T: %w", op, auth, ErrUnsupportedClientAuth)
	}
	return nil
}

// IsConfidential reports whether auth carries client credentials.
func IsConfidential(auth ClientAuth) bool {
	switch a := auth.(type) {
	case ClientSecretAuth, CertificateAuth:
		return true
	case *ClientSecretAuth:
		return a != nil
	case *CertificateAuth:
		return a != nil
	default:
		return false
	}
}

// ApplyClientAuth adds the client credentials for auth to a token request
// form. Certificate auth signs a new assertion for the token url on each
// call.
func ApplyClientAuth(form url.Values, auth ClientAuth, clientID, tokenURL string, now func() time.Time) error {
	const op = "oidc.ApplyClientAuth"
	if form == nil {
		return fmt.Errorf("%s: form is nil: %w", op, ErrNilParameter)
	}
	switch a := auth.(type) {
	case *ClientSecretAuth:
		if a == nil {
			return fmt.Errorf("%s: client auth is nil: %w", op, ErrNilParameter)
		}
		return ApplyClientAuth(form, *a, clientID, tokenURL, now)
	case *CertificateAuth:
		if a == nil {
			return fmt.Errorf("%s: client auth is nil: %w", op, ErrNilParameter)
		}
		return ApplyClientAuth(form, *a, clientID, tokenURL, now)
	case ClientSecretAuth:
		if a.Secret == "" {
			return fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter)
		}
		form.Set("client_secret", string(a.Secret))
	case CertificateAuth:
		opts := []clientassertion.Option{clientassertion.WithNow(now)}
		if a.SendCertificateChain {
			opts = append(opts, clientassertion.WithCertificateChain(a.Certificate))
		}
		cred, err := clientassertion.NewCertificate(clientID, a.PrivateKey, a.Certificate, opts...)
		if err != nil {
			return fmt.Errorf("%s: unable to create client assertion: %w: %w", op, ErrInvalidParameter, err)
		}
		if err := cred.Apply(form, tokenURL); err != nil {
			return fmt.Errorf("%s: unable to sign client assertion: %w", op, err)
		}
	case PublicClient, *PublicClient:
	default:
		return fmt.Errorf("%s: %T: %w", op, auth, ErrUnsupportedClientAuth)
	}
	return nil
}
