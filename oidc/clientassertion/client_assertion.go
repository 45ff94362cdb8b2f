// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package clientassertion authenticates a confidential client to Entra ID with
// a certificate credential: each token request carries a short lived JWT
// (private_key_jwt) signed with the certificate's private key. Entra finds the
// verification key by the certificate's SHA-1 thumbprint in the x5t header.
package clientassertion

import (
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-uuid"
)

const (
	// JWTTypeParam is the client_assertion_type of a signed assertion.
	// https://www.rfc-editor.org/rfc/rfc7523.html#section-2.2
	JWTTypeParam = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	// DefaultLifetime is how long a signed assertion is valid.
	DefaultLifetime = 10 * time.Minute
)

// Certificate is a certificate credential registered for an application.
// It's safe for concurrent use; every assertion gets its own jti.
type Certificate struct {
	clientID string
	key      *rsa.PrivateKey
	cert     *x509.Certificate
	x5c      []string
	keyID    string
	alg      RSAlgorithm
	lifetime time.Duration

	genID func() (string, error)
	now   func() time.Time
}

// NewCertificate returns the credential of clientID for the certificate and
// its private key.
//
// Supported options:
//   - WithAlgorithm
//   - WithKeyID
//   - WithCertificateChain
//   - WithLifetime
//   - WithNow
func NewCertificate(clientID string, key *rsa.PrivateKey, cert *x509.Certificate, opt ...Option) (*Certificate, error) {
	const op = "clientassertion.NewCertificate"
	c := &Certificate{
		clientID: clientID,
		key:      key,
		cert:     cert,
		alg:      RS256,
		lifetime: DefaultLifetime,
		genID:    uuid.GenerateUUID,
		now:      time.Now,
	}

	var errs []error
	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return c, nil
}

func (c *Certificate) validate() error {
	var errs []error
	if c.clientID == "" {
		errs = append(errs, ErrMissingClientID)
	}
	if c.cert == nil {
		errs = append(errs, ErrNilCertificate)
	}
	if err := c.alg.Validate(c.key); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Thumbprint returns the x5t value of the credential.
func (c *Certificate) Thumbprint() string {
	return Thumbprint(c.cert)
}

// Assertion signs a new assertion for the token endpoint at tokenURL, which
// is its audience.
func (c *Certificate) Assertion(tokenURL string) (string, error) {
	const op = "Certificate.Assertion"
	if c == nil || c.key == nil || c.cert == nil {
		return "", fmt.Errorf("%s: use NewCertificate: %w", op, ErrNilCertificate)
	}
	if tokenURL == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingTokenURL)
	}
	jti, err := c.genID()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate jti: %w", op, err)
	}
	signer, err := c.signer()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := c.now().UTC()
	claims := jwt.Claims{
		Issuer:    c.clientID,
		Subject:   c.clientID,
		Audience:  jwt.Audience{tokenURL},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(c.lifetime)),
		ID:        jti,
	}
	signed, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("%s: unable to sign: %w", op, err)
	}
	return signed, nil
}

// Apply sets client_assertion_type and a fresh client_assertion for tokenURL
// on a token request form.
func (c *Certificate) Apply(form url.Values, tokenURL string) error {
	const op = "Certificate.Apply"
	if form == nil {
		return fmt.Errorf("%s: form is nil", op)
	}
	assertion, err := c.Assertion(tokenURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	form.Set("client_assertion_type", JWTTypeParam)
	form.Set("client_assertion", assertion)
	return nil
}

func (c *Certificate) signer() (jose.Signer, error) {
	headers := map[jose.HeaderKey]interface{}{
		"x5t": c.Thumbprint(),
	}
	if len(c.x5c) > 0 {
		headers["x5c"] = c.x5c
	}
	opts := (&jose.SignerOptions{ExtraHeaders: headers}).WithType("JWT")
	key := jose.SigningKey{Algorithm: jose.SignatureAlgorithm(c.alg), Key: c.key}
	if c.keyID != "" {
		key.Key = jose.JSONWebKey{Key: c.key, KeyID: c.keyID, Algorithm: string(c.alg)}
	}
	s, err := jose.NewSigner(key, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreatingSigner, err)
	}
	return s, nil
}

// Thumbprint returns the base64url encoded SHA-1 digest of the certificate's
// DER bytes, the form Entra expects in x5t.
func Thumbprint(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	sum := sha1.Sum(cert.Raw)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
