// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4/jwt"
	sdkHttp "github.com/hashicorp/cap-entra/sdk/http"
)

// KeySet verifies the signature of a compact serialized JWT and returns the
// claims of its payload. Implementations must be safe for concurrent use.
type KeySet interface {
	VerifySignature(ctx context.Context, token string) (claims map[string]interface{}, err error)
}

// JSONWebKeySet verifies signatures against a tenant's published signing keys,
// usually the jwks_uri of the tenant's v2.0 metadata.
type JSONWebKeySet struct {
	remote oidc.KeySet
}

var _ KeySet = JSONWebKeySet{}

// NewJSONWebKeySet returns a KeySet backed by the JWKS document at jwksURL.
// Keys are fetched on first use and refetched when a token names a kid the
// cached set doesn't hold, which is how Entra key rollover is picked up.
//
// When caPEM is set, the JWKS endpoint must present a certificate that chains
// to it. Otherwise an http client carried by ctx (see
// sdk/http.OidcClientContext) is used if present. ctx is used for every fetch,
// so it must outlive the KeySet.
func NewJSONWebKeySet(ctx context.Context, jwksURL string, caPEM string) (KeySet, error) {
	const op = "jwt.NewJSONWebKeySet"
	if jwksURL == "" {
		return nil, fmt.Errorf("%s: missing jwks url: %w", op, ErrInvalidParameter)
	}
	if caPEM != "" {
		client, err := sdkHttp.NewClient(caPEM, 0)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to use jwks ca: %w: %w", op, ErrInvalidParameter, err)
		}
		ctx = sdkHttp.OidcClientContext(ctx, client)
	}
	return JSONWebKeySet{remote: oidc.NewRemoteKeySet(ctx, jwksURL)}, nil
}

// VerifySignature implements KeySet.
func (ks JSONWebKeySet) VerifySignature(ctx context.Context, token string) (map[string]interface{}, error) {
	const op = "jwt.(JSONWebKeySet).VerifySignature"
	payload, err := ks.remote.VerifySignature(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}
	claims := map[string]interface{}{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%s: payload is not a claims object: %w: %w", op, ErrInvalidSignature, err)
	}
	return claims, nil
}

// staticKey is a local verification key. kid is the base64url SHA-1
// thumbprint of the certificate it came from, matching the kid and x5t
// Entra puts in token headers; bare public keys have no kid.
type staticKey struct {
	kid string
	key interface{}
}

// StaticKeySet verifies signatures against a fixed list of local keys, for
// deployments that pin the tenant's signing certificates instead of fetching
// the JWKS.
type StaticKeySet struct {
	keys []staticKey
}

var _ KeySet = StaticKeySet{}

// NewStaticKeySet parses PEM encoded x509 certificates or PKIX public keys.
// An entry may hold several PEM blocks. Only RSA and ECDSA keys are accepted.
func NewStaticKeySet(publicKeys []string) (KeySet, error) {
	const op = "jwt.NewStaticKeySet"
	if len(publicKeys) == 0 {
		return nil, fmt.Errorf("%s: at least one key is required: %w", op, ErrInvalidParameter)
	}
	var ks StaticKeySet
	for i, entry := range publicKeys {
		keys, err := parseKeys([]byte(entry))
		if err != nil {
			return nil, fmt.Errorf("%s: key %d: %w", op, i, err)
		}
		ks.keys = append(ks.keys, keys...)
	}
	return ks, nil
}

// VerifySignature implements KeySet. A key whose kid matches the token header
// is tried first, then every other key.
func (ks StaticKeySet) VerifySignature(_ context.Context, token string) (map[string]interface{}, error) {
	const op = "jwt.(StaticKeySet).VerifySignature"
	parsed, err := jwt.ParseSigned(token, joseAlgs(allAlgs()))
	if err != nil {
		return nil, fmt.Errorf("%s: malformed token: %w: %w", op, ErrInvalidSignature, err)
	}
	var kid string
	if len(parsed.Headers) > 0 {
		kid = parsed.Headers[0].KeyID
	}

	ordered := make([]staticKey, 0, len(ks.keys))
	for _, k := range ks.keys {
		if kid != "" && k.kid == kid {
			ordered = append([]staticKey{k}, ordered...)
			continue
		}
		ordered = append(ordered, k)
	}
	for _, k := range ordered {
		claims := map[string]interface{}{}
		if err := parsed.Claims(k.key, &claims); err == nil {
			return claims, nil
		}
	}
	return nil, fmt.Errorf("%s: none of %d keys verified the token: %w", op, len(ks.keys), ErrInvalidSignature)
}

func parseKeys(data []byte) ([]staticKey, error) {
	var keys []staticKey
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		k, err := parseBlock(block)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no pem blocks found: %w", ErrInvalidParameter)
	}
	return keys, nil
}

func parseBlock(block *pem.Block) (staticKey, error) {
	var k staticKey
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return k, fmt.Errorf("unable to parse certificate: %w: %w", ErrInvalidParameter, err)
		}
		sum := sha1.Sum(cert.Raw)
		k.kid = base64.RawURLEncoding.EncodeToString(sum[:])
		k.key = cert.PublicKey
	default:
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return k, fmt.Errorf("unable to parse %q block: %w: %w", block.Type, ErrInvalidParameter, err)
		}
		k.key = pub
	}
	switch k.key.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return k, nil
	default:
		return k, fmt.Errorf("unsupported key type %T: %w", k.key, ErrInvalidParameter)
	}
}
