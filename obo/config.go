// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package obo

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/cap-entra/cloud"
	"github.com/hashicorp/cap-entra/oidc"
	"github.com/hashicorp/go-multierror"
)

// Config represents the configuration of a middle tier API that exchanges
// its callers' tokens for downstream tokens.
type Config struct {
	// ClientID is the application (client) id of the middle tier API. Inbound
	// assertions must be issued for it.
	ClientID string

	// TenantID is the directory (tenant) id. With a multi-tenant alias the
	// exchange is sent to the tenant of each assertion.
	TenantID string

	// Cloud selects the sovereign cloud.
	Cloud cloud.Cloud

	// ClientAuth must be an oidc.ClientSecretAuth or oidc.CertificateAuth.
	ClientAuth oidc.ClientAuth

	// Scopes are the default downstream scopes. Mutually exclusive with
	// Resource.
	Scopes []string

	// Resource is the default downstream resource (v1 style). Mutually
	// exclusive with Scopes.
	Resource string

	// AllowedAudiences are accepted as assertion audiences besides ClientID,
	// e.g. the api://<client id> application id uri.
	AllowedAudiences []string

	// AuthorizedParties pins the clients allowed to call the API (the
	// assertion's azp or appid claim). Empty allows any client.
	AuthorizedParties []string

	// AllowV1Issuer accepts assertions with a v1 (sts) issuer.
	AllowV1Issuer bool

	// ClockSkew is the leeway applied to assertion times. Zero uses
	// jwt.DefaultClockSkew.
	ClockSkew time.Duration
}

// Validate the config. Every problem found is returned in a single
// *multierror.Error wrapped with ErrInvalidConfig. It doesn't make any
// requests.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("client id is empty: %w", ErrInvalidParameter))
	}
	if err := c.Cloud.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := cloud.ValidateTenant(c.TenantID); err != nil {
		result = multierror.Append(result, err)
	}
	if !oidc.IsConfidential(c.ClientAuth) {
		result = multierror.Append(result, fmt.Errorf("a client secret or certificate is required: %w", ErrInvalidParameter))
	} else if err := oidc.ValidateClientAuth(c.ClientAuth); err != nil {
		result = multierror.Append(result, err)
	}
	if len(c.Scopes) > 0 && c.Resource != "" {
		result = multierror.Append(result, fmt.Errorf("scopes and resource are mutually exclusive: %w", ErrInvalidParameter))
	}
	if c.Cloud.Validate() == nil {
		if err := cloud.ValidateScopes(c.Scopes, c.Cloud); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.ClockSkew < 0 {
		result = multierror.Append(result, fmt.Errorf("clock skew is negative: %w", ErrInvalidParameter))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidConfig, err)
	}
	return nil
}

// Request is one on-behalf-of exchange.
type Request struct {
	// Assertion is the caller's access token, usually from
	// jwt.ExtractBearerToken.
	Assertion string

	// Scopes and Resource override the config's target. When both are empty
	// the config's are used; exactly one must end up set.
	Scopes   []string
	Resource string

	// Claims is the claims challenge to satisfy, from a previous
	// CAERequiredError. It's sent as the claims parameter and is part of the
	// cache key.
	Claims string

	// Cache overrides the exchanger's cache for this request.
	Cache *TokenCache

	// SkipCache bypasses cache reads for this request. The result is still
	// cached.
	SkipCache bool
}

// target returns the effective scopes and resource of the request.
func (r Request) target(c *Config) ([]string, string) {
	if len(r.Scopes) > 0 || r.Resource != "" {
		return r.Scopes, r.Resource
	}
	return c.Scopes, c.Resource
}

func (r Request) validate(c *Config) error {
	const op = "obo.(Request).validate"
	if strings.TrimSpace(r.Assertion) == "" {
		return fmt.Errorf("%s: %w", op, ErrMissingAssertion)
	}
	scopes, resource := r.target(c)
	switch {
	case len(scopes) > 0 && resource != "":
		return fmt.Errorf("%s: both scopes and resource are set: %w", op, ErrInvalidConfig)
	case len(scopes) == 0 && resource == "":
		return fmt.Errorf("%s: neither scopes nor resource is set: %w", op, ErrInvalidConfig)
	}
	for _, s := range scopes {
		if strings.TrimSpace(s) == "" || strings.ContainsAny(s, " \t") {
			return fmt.Errorf("%s: scope %q is invalid: %w", op, s, ErrInvalidConfig)
		}
	}
	if err := cloud.ValidateScopes(scopes, c.Cloud); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidConfig, err)
	}
	return nil
}

// sortedScopes returns a sorted copy of scopes.
func sortedScopes(scopes []string) []string {
	out := append([]string(nil), scopes...)
	sort.Strings(out)
	return out
}
