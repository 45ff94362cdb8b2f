// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
)

// TestGenerateRSAKey will generate a test 2048 bit RSA key.
func TestGenerateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// TestPublicKeyPEM returns the PKIX PEM encoding of the key's public half.
func TestPublicKeyPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	derBytes, err := x509.MarshalPKIXPublicKey(key.Public())
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: derBytes}))
}

// TestGenerateCertificate will generate a self signed certificate for the key,
// suitable for CertificateAuth.
func TestGenerateCertificate(t *testing.T, key *rsa.PrivateKey) *x509.Certificate {
	t.Helper()
	require := require.New(t)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	require.NoError(err)

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   "cap-entra test client",
			Organization: []string{"Acme Co"},
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, key.Public(), key)
	require.NoError(err)
	cert, err := x509.ParseCertificate(derBytes)
	require.NoError(err)
	return cert
}

// TestSignJWT will bundle the provided claims into a test RS256 signed JWT
// with the given key id.
func TestSignJWT(t *testing.T, key *rsa.PrivateKey, keyID string, claims josejwt.Claims, privateClaims interface{}) string {
	t.Helper()
	raw, err := signJWT(key, keyID, claims, privateClaims)
	require.NoError(t, err)
	return raw
}

func signJWT(key *rsa.PrivateKey, keyID string, claims josejwt.Claims, privateClaims interface{}) (string, error) {
	signingKey := jose.SigningKey{Algorithm: jose.RS256, Key: key}
	if keyID != "" {
		signingKey.Key = jose.JSONWebKey{Key: key, KeyID: keyID, Algorithm: string(jose.RS256)}
	}
	sig, err := jose.NewSigner(signingKey, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", err
	}
	b := josejwt.Signed(sig).Claims(claims)
	if privateClaims != nil {
		b = b.Claims(privateClaims)
	}
	return b.Serialize()
}
