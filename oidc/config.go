// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/cap-entra/cloud"
	sdkHttp "github.com/hashicorp/cap-entra/sdk/http"
	"github.com/hashicorp/go-multierror"
)

// ClientSecret is an oauth client secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// DefaultScopes are requested when a Config has no scopes. offline_access is
// what makes Entra return a refresh_token.
var DefaultScopes = []string{"openid", "profile", "offline_access", "User.Read"}

// ScopeOpenID is the scope every OIDC request must carry.
const ScopeOpenID = "openid"

// Config represents the configuration for the Entra authorization code flow
// with PKCE.
type Config struct {
	// ClientID is the application (client) id of the app registration.
	ClientID string

	// TenantID is the directory (tenant) id. A tenant guid is recommended;
	// the multi-tenant aliases (common, organizations) are accepted and the
	// issuer is then checked against the token's own tid claim.
	TenantID string

	// Cloud selects the sovereign cloud whose endpoints are used.
	Cloud cloud.Cloud

	// RedirectURL is the registered redirect uri of the callback handler.
	RedirectURL string

	// ClientAuth is how the client authenticates at the token endpoint.
	ClientAuth ClientAuth

	// Scopes are requested at authorization and code exchange. DefaultScopes
	// are used when empty; "openid" is always added.
	Scopes []string

	// ProviderCA is an optional PEM encoded CA cert used when sending
	// requests to the provider.
	ProviderCA string

	// AuthorityHost optionally replaces the cloud's login host, for test
	// providers and authority proxies.
	AuthorityHost string

	// Timeout bounds each request to the provider. Zero uses
	// sdk/http.DefaultTimeout.
	Timeout time.Duration
}

// NewConfig composes a new config for a provider.
//
// Supported options:
//   - WithScopes
//   - WithProviderCA
//   - WithAuthorityHost
//   - WithTimeout
func NewConfig(clientID, tenantID string, c cloud.Cloud, redirectURL string, auth ClientAuth, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	cfg := &Config{
		ClientID:      clientID,
		TenantID:      tenantID,
		Cloud:         c,
		RedirectURL:   redirectURL,
		ClientAuth:    auth,
		Scopes:        opts.withScopes,
		ProviderCA:    opts.withProviderCA,
		AuthorityHost: opts.withAuthorityHost,
		Timeout:       opts.withTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return cfg, nil
}

// Validate the provider configuration. Every problem found is returned in a
// single *multierror.Error. It doesn't make any requests to the provider.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
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
	if err := validateRedirectURL(c.RedirectURL); err != nil {
		result = multierror.Append(result, err)
	}
	if err := ValidateClientAuth(c.ClientAuth); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Cloud.Validate() == nil {
		if err := cloud.ValidateScopes(c.Scopes, c.Cloud); err != nil {
			result = multierror.Append(result, err)
		}
		if c.TenantID != "" {
			if _, err := c.Endpoints(); err != nil && errors.Is(err, cloud.ErrInvalidURL) {
				result = multierror.Append(result, err)
			}
		}
	}
	if c.ProviderCA != "" {
		if _, err := sdkHttp.NewClient(c.ProviderCA, c.Timeout); err != nil {
			result = multierror.Append(result, fmt.Errorf("could not parse CA PEM value: %w", ErrInvalidCACert))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func validateRedirectURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("redirect url is empty: %w", ErrInvalidParameter)
	}
	u, err := url.Parse(raw)
	switch {
	case err != nil:
		return fmt.Errorf("redirect url %q is invalid: %w: %w", raw, ErrInvalidParameter, err)
	case u.Scheme != "https" && u.Scheme != "http", u.Host == "":
		return fmt.Errorf("redirect url %q is not an absolute http(s) url: %w", raw, ErrInvalidParameter)
	case u.Fragment != "":
		return fmt.Errorf("redirect url %q must not have a fragment: %w", raw, ErrInvalidParameter)
	}
	return nil
}

// Endpoints resolves the provider endpoints for the config's cloud and
// tenant.
func (c *Config) Endpoints() (cloud.Endpoints, error) {
	var opt []cloud.Option
	if c.AuthorityHost != "" {
		opt = append(opt, cloud.WithAuthorityHost(c.AuthorityHost))
	}
	return cloud.ResolveEndpoints(c.Cloud, c.TenantID, opt...)
}

// RequestScopes returns the scopes sent at authorization and code exchange.
func (c *Config) RequestScopes() []string {
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	for _, s := range scopes {
		if s == ScopeOpenID {
			return append([]string(nil), scopes...)
		}
	}
	return append([]string{ScopeOpenID}, scopes...)
}

// HttpClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	client, err := sdkHttp.NewClient(c.ProviderCA, c.Timeout)
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// HttpClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HttpClientContext(ctx context.Context, client *http.Client) context.Context {
	return sdkHttp.OidcClientContext(ctx, client)
}

// configOptions is the set of available options
type configOptions struct {
	withScopes        []string
	withProviderCA    string
	withAuthorityHost string
	withTimeout       time.Duration
}

// configDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func configDefaults() configOptions {
	return configOptions{}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithAuthorityHost provides an optional authority host (scheme and host)
// that replaces the cloud's login host for the provider's config.
func WithAuthorityHost(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAuthorityHost = u
		}
	}
}

// WithTimeout provides an optional per request timeout for the provider's
// config.
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withTimeout = d
		}
	}
}
