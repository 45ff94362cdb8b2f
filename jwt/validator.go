// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/cap-entra/cloud"
)

// AccessTokenClaims are the claims of a validated access token. They are
// never persisted.
type AccessTokenClaims struct {
	Subject         string
	TenantID        string
	Audience        []string
	Issuer          string
	AuthorizedParty string
	IssuedAt        time.Time
	Expiry          time.Time
	NotBefore       time.Time
	Scopes          []string
	Roles           []string
	ObjectID        string

	// Raw holds every claim of the token.
	Raw map[string]interface{}
}

// HasScope reports whether the token was granted the delegated scope.
func (c *AccessTokenClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasRole reports whether the token carries the app role.
func (c *AccessTokenClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// entraClaims are the Entra specific claims not covered by jwt.Claims.
type entraClaims struct {
	TenantID string   `json:"tid"`
	AZP      string   `json:"azp"`
	AppID    string   `json:"appid"`
	Scope    string   `json:"scp"`
	Roles    []string `json:"roles"`
	ObjectID string   `json:"oid"`
	Version  string   `json:"ver"`
}

// Validator validates access tokens issued by one tenant of one cloud for
// one API (client id).
type Validator struct {
	keySet   KeySet
	clientID string
	tenantID string
	cloud    cloud.Cloud
	opts     validatorOptions
}

// NewValidator returns a Validator that verifies signatures with keySet and
// accepts tokens whose audience is clientID (or an allowed audience) and
// whose issuer belongs to tenantID in cloud c.
//
// Supported options:
//   - WithAllowedAudiences
//   - WithAuthorizedParty
//   - WithAllowV1Issuer
//   - WithClockSkew
//   - WithNow
//   - WithSigningAlgorithms
func NewValidator(keySet KeySet, clientID, tenantID string, c cloud.Cloud, opt ...Option) (*Validator, error) {
	const op = "jwt.NewValidator"
	switch {
	case keySet == nil:
		return nil, fmt.Errorf("%s: key set is nil: %w", op, ErrInvalidParameter)
	case clientID == "":
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cloud.ValidateTenant(tenantID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getValidatorOpts(opt...)
	if len(opts.withSigningAlgs) == 0 {
		return nil, fmt.Errorf("%s: no signing algorithms: %w", op, ErrInvalidParameter)
	}
	if err := SupportedSigningAlgorithm(opts.withSigningAlgs...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Validator{
		keySet:   keySet,
		clientID: clientID,
		tenantID: tenantID,
		cloud:    c,
		opts:     opts,
	}, nil
}

// ValidateAccessToken verifies the token's signature and claims. Checks run
// in order: structure and signature, expiry and not-before with the clock
// skew, audience, tenant, issuer, authorized party.
func (v *Validator) ValidateAccessToken(ctx context.Context, token string) (*AccessTokenClaims, error) {
	const op = "Validator.ValidateAccessToken"
	if token == "" {
		return nil, fmt.Errorf("%s: token is empty: %w", op, ErrInvalidSignature)
	}
	parsed, err := jwt.ParseSigned(token, joseAlgs(v.opts.withSigningAlgs))
	if err != nil {
		return nil, fmt.Errorf("%s: malformed token: %w: %w", op, ErrInvalidSignature, err)
	}
	raw, err := v.keySet.VerifySignature(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}

	// the signature was verified above
	var std jwt.Claims
	var ec entraClaims
	if err := parsed.UnsafeClaimsWithoutVerification(&std, &ec); err != nil {
		return nil, fmt.Errorf("%s: malformed claims: %w: %w", op, ErrInvalidSignature, err)
	}

	if std.Expiry == nil {
		return nil, fmt.Errorf("%s: exp: %w", op, ErrMissingClaim)
	}
	if err := validateTimes(std, v.opts.withNowFunc(), v.opts.withClockSkew); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !v.audienceAllowed(std.Audience) {
		return nil, fmt.Errorf("%s: audience %q: %w", op, []string(std.Audience), ErrInvalidAudience)
	}

	tenant := v.tenantID
	switch {
	case ec.TenantID == "":
		return nil, fmt.Errorf("%s: tid: %w", op, ErrMissingClaim)
	case cloud.IsMultiTenant(tenant):
		tenant = ec.TenantID
	case !strings.EqualFold(ec.TenantID, tenant):
		return nil, fmt.Errorf("%s: tid %q, expected %q: %w", op, ec.TenantID, tenant, ErrTenantMismatch)
	}
	var issOpts []cloud.Option
	if !v.opts.withAllowV1Issuer {
		issOpts = append(issOpts, cloud.WithV2Only())
	}
	if err := cloud.ValidateIssuer(std.Issuer, tenant, v.cloud, issOpts...); err != nil {
		var ie *cloud.IssuerError
		if errors.As(err, &ie) && ie.Reason == cloud.TenantMismatch {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrTenantMismatch, err)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidIssuer, err)
	}

	azp := ec.AZP
	if azp == "" {
		azp = ec.AppID
	}
	if len(v.opts.withAuthorizedParty) > 0 && !containsFold(v.opts.withAuthorizedParty, azp) {
		return nil, fmt.Errorf("%s: authorized party %q: %w", op, azp, ErrAuthorizedPartyMismatch)
	}

	claims := &AccessTokenClaims{
		Subject:         std.Subject,
		TenantID:        ec.TenantID,
		Audience:        []string(std.Audience),
		Issuer:          std.Issuer,
		AuthorizedParty: azp,
		Expiry:          std.Expiry.Time(),
		Scopes:          strings.Fields(ec.Scope),
		Roles:           ec.Roles,
		ObjectID:        ec.ObjectID,
		Raw:             raw,
	}
	if std.IssuedAt != nil {
		claims.IssuedAt = std.IssuedAt.Time()
	}
	if std.NotBefore != nil {
		claims.NotBefore = std.NotBefore.Time()
	}
	return claims, nil
}

func validateTimes(std jwt.Claims, now time.Time, skew time.Duration) error {
	err := std.ValidateWithLeeway(jwt.Expected{Time: now}, skew)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrExpired):
		return fmt.Errorf("expired at %s: %w", std.Expiry.Time().UTC().Format(time.RFC3339), ErrExpired)
	case errors.Is(err, jwt.ErrNotValidYet), errors.Is(err, jwt.ErrIssuedInTheFuture):
		return fmt.Errorf("%w: %w", ErrNotValidYet, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
}

func (v *Validator) audienceAllowed(aud jwt.Audience) bool {
	if aud.Contains(v.clientID) {
		return true
	}
	for _, a := range v.opts.withAllowedAudiences {
		if aud.Contains(a) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
