// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloud

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Endpoints is the set of identity provider urls for one (cloud, tenant).
// It is derived, never stored.
type Endpoints struct {
	AuthorizeURL string
	TokenURL     string
	LogoutURL    string
	JWKSURL      string
	GraphURL     string

	// Issuer is the v2.0 issuer of tokens minted for the tenant.
	Issuer string
}

var tenantRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.-]*$`)

// ValidateTenant checks that tenant is safe to use as a url path segment.
func ValidateTenant(tenant string) error {
	const op = "cloud.ValidateTenant"
	if tenant == "" {
		return fmt.Errorf("%s: tenant is empty: %w", op, ErrInvalidTenant)
	}
	if !tenantRe.MatchString(tenant) {
		return fmt.Errorf("%s: tenant %q contains invalid characters: %w", op, tenant, ErrInvalidTenant)
	}
	return nil
}

// IsMultiTenant reports whether tenant is one of the multi-tenant authority
// aliases rather than a specific directory. Tokens never carry these aliases
// in their issuer, so issuer checks must use the token's tid instead.
func IsMultiTenant(tenant string) bool {
	switch strings.ToLower(tenant) {
	case "common", "organizations", "consumers":
		return true
	default:
		return false
	}
}

// ResolveEndpoints returns the endpoints for the cloud and tenant.
//
// Supported options:
//   - WithAuthorityHost
func ResolveEndpoints(c Cloud, tenant string, opt ...Option) (Endpoints, error) {
	const op = "cloud.ResolveEndpoints"
	if err := c.Validate(); err != nil {
		return Endpoints{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := ValidateTenant(tenant); err != nil {
		return Endpoints{}, fmt.Errorf("%s: %w", op, err)
	}
	opts := getEndpointOpts(opt...)

	authority := "https://" + c.LoginHost()
	if opts.withAuthorityHost != "" {
		u, err := url.Parse(opts.withAuthorityHost)
		switch {
		case err != nil:
			return Endpoints{}, fmt.Errorf("%s: authority host %q: %w: %w", op, opts.withAuthorityHost, ErrInvalidURL, err)
		case u.Scheme != "https" && u.Scheme != "http", u.Host == "":
			return Endpoints{}, fmt.Errorf("%s: authority host %q is not an absolute http(s) url: %w", op, opts.withAuthorityHost, ErrInvalidURL)
		case strings.Trim(u.Path, "/") != "", u.RawQuery != "", u.Fragment != "":
			return Endpoints{}, fmt.Errorf("%s: authority host %q must not have a path, query or fragment: %w", op, opts.withAuthorityHost, ErrInvalidURL)
		}
		authority = u.Scheme + "://" + u.Host
	}

	base := authority + "/" + tenant
	return Endpoints{
		AuthorizeURL: base + "/oauth2/v2.0/authorize",
		TokenURL:     base + "/oauth2/v2.0/token",
		LogoutURL:    base + "/oauth2/v2.0/logout",
		JWKSURL:      base + "/discovery/v2.0/keys",
		GraphURL:     "https://" + c.GraphHost() + "/v1.0",
		Issuer:       ExpectedIssuer(c, tenant, true),
	}, nil
}
