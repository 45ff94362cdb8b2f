// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/cap-entra/cloud"
	"github.com/hashicorp/cap-entra/jwt"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// DefaultIdTokenSkew is the leeway applied to an id_token's exp, nbf and iat.
const DefaultIdTokenSkew = 60 * time.Second

// Provider provides integration with an Entra ID tenant using the
// authorization code flow with PKCE.
type Provider struct {
	config    *Config
	endpoints cloud.Endpoints
	client    *http.Client
	keySet    jwt.KeySet
	logger    hclog.Logger
	now       func() time.Time

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like fetching the tenant's JWKS.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates a Provider for the config. Unlike discovery based
// providers it makes no request: the endpoints are resolved from the cloud
// and tenant, and signing keys are fetched when the first id_token is
// verified.
//
// See Provider.Done() which must be called to release provider resources.
//
// Supported options:
//   - WithLogger
//   - WithKeySet
//   - WithNow
func NewProvider(c *Config, opt ...Option) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)

	endpoints, err := c.Endpoints()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	client, err := c.HttpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		config:              c,
		endpoints:           endpoints,
		client:              client,
		keySet:              opts.withKeySet,
		logger:              opts.withLogger.Named("oidc"),
		now:                 opts.withNowFunc,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}
	if p.keySet == nil {
		ks, err := jwt.NewJSONWebKeySet(HttpClientContext(p.backgroundCtx, client), endpoints.JWKSURL, "")
		if err != nil {
			p.Done() // release the backgroundCtxCancel resources
			return nil, fmt.Errorf("%s: unable to create key set: %w", op, err)
		}
		p.keySet = ks
	}
	return p, nil
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Config returns the provider's config.
func (p *Provider) Config() *Config { return p.config }

// Endpoints returns the provider's resolved endpoints.
func (p *Provider) Endpoints() cloud.Endpoints { return p.endpoints }

// HttpClient returns the client used for requests to the provider.
func (p *Provider) HttpClient() *http.Client { return p.client }

// KeySet returns the key set used to verify id_tokens.
func (p *Provider) KeySet() jwt.KeySet { return p.keySet }

// AuthURL returns the authorization request URL for the flow state. The
// request carries the state, nonce and S256 code challenge and asks for a
// query response.
//
// Supported options:
//   - WithPrompt
//   - WithLoginHint
//   - WithDomainHint
func (p *Provider) AuthURL(_ context.Context, fs *FlowState, opt ...Option) (string, error) {
	const op = "Provider.AuthURL"
	if err := fs.Validate(WithNow(p.now)); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	opts := getAuthURLOpts(opt...)

	oauth2Config := oauth2.Config{
		ClientID:    p.config.ClientID,
		RedirectURL: p.config.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.endpoints.AuthorizeURL,
			TokenURL: p.endpoints.TokenURL,
		},
		Scopes: p.config.RequestScopes(),
	}
	authCodeOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("nonce", fs.Nonce),
		oauth2.SetAuthURLParam("response_mode", "query"),
		oauth2.S256ChallengeOption(fs.Verifier),
	}
	if opts.withPrompt != "" {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("prompt", opts.withPrompt))
	}
	if opts.withLoginHint != "" {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("login_hint", opts.withLoginHint))
	}
	if opts.withDomainHint != "" {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("domain_hint", opts.withDomainHint))
	}
	return oauth2Config.AuthCodeURL(fs.State, authCodeOpts...), nil
}

// Exchange redeems an authorization code at the token endpoint. The
// code_verifier is sent only when verifier isn't empty. A provider error
// returns a *TokenError.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (*Token, error) {
	const op = "Provider.Exchange"
	if code == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	form := url.Values{
		"grant_type":   {GrantTypeAuthorizationCode},
		"client_id":    {p.config.ClientID},
		"code":         {code},
		"redirect_uri": {p.config.RedirectURL},
		"scope":        {strings.Join(p.config.RequestScopes(), " ")},
	}
	if verifier != "" {
		form.Set("code_verifier", verifier)
	}
	tk, err := p.requestToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tk, nil
}

// Refresh redeems a refresh token. The scope defaults to DefaultScopes; the
// response usually carries a rotated refresh token which replaces the one
// presented.
//
// Supported options:
//   - WithScopes
func (p *Provider) Refresh(ctx context.Context, rt RefreshToken, opt ...Option) (*Token, error) {
	const op = "Provider.Refresh"
	if rt == "" {
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	opts := getRefreshOpts(opt...)
	form := url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"client_id":     {p.config.ClientID},
		"refresh_token": {string(rt)},
		"scope":         {strings.Join(opts.withScopes, " ")},
	}
	tk, err := p.requestToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tk, nil
}

func (p *Provider) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	grant := form.Get("grant_type")
	if err := ApplyClientAuth(form, p.config.ClientAuth, p.config.ClientID, p.endpoints.TokenURL, p.now); err != nil {
		return nil, err
	}
	p.logger.Debug("token request", "grant_type", grant, "token_url", p.endpoints.TokenURL)
	t, err := RequestToken(ctx, p.client, p.endpoints.TokenURL, form, p.now)
	if err != nil {
		var tErr *TokenError
		if errors.As(err, &tErr) {
			p.logger.Error("token request failed", "grant_type", grant, "status", tErr.StatusCode,
				"error", tErr.Code, "error_codes", tErr.ErrorCodes, "correlation_id", tErr.CorrelationID)
		}
		return nil, err
	}
	return NewToken(t), nil
}

// UserClaims are the claims of a verified id_token that the application
// needs. Subject, Issuer, IssuedAt and Expiry are always set.
type UserClaims struct {
	Subject           string    `json:"sub"`
	Issuer            string    `json:"iss"`
	TenantID          string    `json:"tid,omitempty"`
	ObjectID          string    `json:"oid,omitempty"`
	Name              string    `json:"name,omitempty"`
	Email             string    `json:"email,omitempty"`
	PreferredUsername string    `json:"preferred_username,omitempty"`
	IssuedAt          time.Time `json:"iat"`
	Expiry            time.Time `json:"exp"`
}

type idTokenClaims struct {
	Nonce             string `json:"nonce"`
	TenantID          string `json:"tid"`
	ObjectID          string `json:"oid"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

// VerifyIdToken verifies the id_token's signature against the tenant's keys
// and checks its audience, issuer, times and nonce. A nonce mismatch returns
// ErrInvalidNonce, distinct from the other verification failures.
func (p *Provider) VerifyIdToken(ctx context.Context, t IdToken, nonce string) (*UserClaims, error) {
	const op = "Provider.VerifyIdToken"
	if t == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingIdToken)
	}
	parsed, err := josejwt.ParseSigned(string(t), []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return nil, fmt.Errorf("%s: malformed id_token: %w: %w", op, ErrInvalidSignature, err)
	}
	if _, err := p.keySet.VerifySignature(ctx, string(t)); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}

	// the signature was verified above
	var std josejwt.Claims
	var idc idTokenClaims
	if err := parsed.UnsafeClaimsWithoutVerification(&std, &idc); err != nil {
		return nil, fmt.Errorf("%s: malformed claims: %w: %w", op, ErrIdTokenVerificationFailed, err)
	}
	switch {
	case std.Subject == "":
		return nil, fmt.Errorf("%s: missing sub: %w", op, ErrIdTokenVerificationFailed)
	case std.Expiry == nil:
		return nil, fmt.Errorf("%s: missing exp: %w", op, ErrIdTokenVerificationFailed)
	case std.IssuedAt == nil:
		return nil, fmt.Errorf("%s: missing iat: %w", op, ErrIdTokenVerificationFailed)
	}

	err = std.ValidateWithLeeway(josejwt.Expected{Time: p.now()}, DefaultIdTokenSkew)
	switch {
	case err == nil:
	case errors.Is(err, josejwt.ErrExpired):
		return nil, fmt.Errorf("%s: %w", op, ErrExpiredToken)
	case errors.Is(err, josejwt.ErrNotValidYet), errors.Is(err, josejwt.ErrIssuedInTheFuture):
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNotValidYet, err)
	default:
		return nil, fmt.Errorf("%s: %w: %w", op, ErrIdTokenVerificationFailed, err)
	}
	if !std.Audience.Contains(p.config.ClientID) {
		return nil, fmt.Errorf("%s: audience %q: %w", op, []string(std.Audience), ErrInvalidAudience)
	}

	tenant := p.config.TenantID
	if cloud.IsMultiTenant(tenant) {
		if idc.TenantID == "" {
			return nil, fmt.Errorf("%s: missing tid: %w", op, ErrInvalidIssuer)
		}
		tenant = idc.TenantID
	}
	if err := cloud.ValidateIssuer(std.Issuer, tenant, p.config.Cloud, cloud.WithV2Only()); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidIssuer, err)
	}

	if err := ValidateNonce(idc.Nonce, nonce); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &UserClaims{
		Subject:           std.Subject,
		Issuer:            std.Issuer,
		TenantID:          idc.TenantID,
		ObjectID:          idc.ObjectID,
		Name:              idc.Name,
		Email:             idc.Email,
		PreferredUsername: idc.PreferredUsername,
		IssuedAt:          std.IssuedAt.Time(),
		Expiry:            std.Expiry.Time(),
	}, nil
}

// LogoutURL returns the tenant's end session URL. postLogoutRedirect is
// optional.
func (p *Provider) LogoutURL(postLogoutRedirect string) (string, error) {
	const op = "Provider.LogoutURL"
	u, err := url.Parse(p.endpoints.LogoutURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrInvalidParameter, err)
	}
	if postLogoutRedirect != "" {
		if err := validateRedirectURL(postLogoutRedirect); err != nil {
			return "", fmt.Errorf("%s: post logout redirect: %w", op, err)
		}
		q := u.Query()
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// providerOptions is the set of available options for NewProvider.
type providerOptions struct {
	withLogger  hclog.Logger
	withKeySet  jwt.KeySet
	withNowFunc func() time.Time
}

func providerDefaults() providerOptions {
	return providerOptions{
		withLogger:  hclog.NewNullLogger(),
		withNowFunc: time.Now,
	}
}

func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// refreshOptions is the set of available options for Provider.Refresh.
type refreshOptions struct {
	withScopes []string
}

func getRefreshOpts(opt ...Option) refreshOptions {
	opts := refreshOptions{}
	ApplyOpts(&opts, opt...)
	if len(opts.withScopes) == 0 {
		opts.withScopes = DefaultScopes
	}
	return opts
}

// authURLOptions is the set of available options for Provider.AuthURL.
type authURLOptions struct {
	withPrompt     string
	withLoginHint  string
	withDomainHint string
}

func getAuthURLOpts(opt ...Option) authURLOptions {
	opts := authURLOptions{}
	ApplyOpts(&opts, opt...)
	return opts
}

// WithPrompt provides an optional prompt parameter (login, none, consent,
// select_account) for: Provider.AuthURL.
func WithPrompt(prompt string) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withPrompt = prompt
		}
	}
}

// WithLoginHint provides an optional login_hint for: Provider.AuthURL.
func WithLoginHint(hint string) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withLoginHint = hint
		}
	}
}

// WithDomainHint provides an optional domain_hint for: Provider.AuthURL.
func WithDomainHint(hint string) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withDomainHint = hint
		}
	}
}
