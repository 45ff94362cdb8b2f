// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package obo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/cap-entra/cloud"
	"github.com/hashicorp/cap-entra/jwt"
	"github.com/hashicorp/cap-entra/oidc"
	sdkHttp "github.com/hashicorp/cap-entra/sdk/http"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// RequestedTokenUse is the requested_token_use of an on-behalf-of request.
const RequestedTokenUse = "on_behalf_of"

// Result is a downstream token.
type Result struct {
	AccessToken oidc.AccessToken
	TokenType   string

	// ExpiresIn is the number of seconds until ExpiresAt, computed when the
	// result is returned.
	ExpiresIn int64
	ExpiresAt time.Time

	// Scope is the granted scope, or the requested scopes when the provider
	// didn't return one.
	Scope string

	// FromCache is true when no request was made.
	FromCache bool
}

// Exchanger exchanges inbound access tokens for downstream tokens with the
// on-behalf-of flow.
type Exchanger struct {
	config        Config
	authorityHost string
	client        *http.Client
	validator     *jwt.Validator
	cache         *TokenCache
	logger        hclog.Logger
	clock         clockwork.Clock
	group         singleflight.Group

	flightMu sync.Mutex
	flights  map[string]*flight

	mu                  sync.Mutex
	backgroundCtx       context.Context
	backgroundCtxCancel context.CancelFunc
}

// NewExchanger validates cfg and creates an Exchanger. Like
// oidc.NewProvider it makes no request; the tenant's signing keys are
// fetched when the first assertion is validated.
//
// See Exchanger.Done() which must be called to release its resources.
//
// Supported options:
//   - WithCache
//   - WithLogger
//   - WithHTTPClient
//   - WithKeySet
//   - WithAuthorityHost
//   - WithClock
func NewExchanger(cfg Config, opt ...Option) (*Exchanger, error) {
	const op = "obo.NewExchanger"
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getExchangerOpts(opt...)

	endpoints, err := resolveEndpoints(cfg.Cloud, cfg.TenantID, opts.withAuthorityHost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidConfig, err)
	}

	client := opts.withHTTPClient
	if client == nil {
		if client, err = sdkHttp.NewClient("", sdkHttp.DefaultTimeout); err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
		}
	}

	tc := opts.withCache
	if !opts.withCacheSet {
		if tc, err = NewTokenCache(DefaultMaxEntries, DefaultBuffer, WithClock(opts.withClock)); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Exchanger{
		config:              cfg,
		authorityHost:       opts.withAuthorityHost,
		client:              client,
		cache:               tc,
		logger:              opts.withLogger.Named("obo"),
		clock:               opts.withClock,
		flights:             map[string]*flight{},
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	ks := opts.withKeySet
	if ks == nil {
		if ks, err = jwt.NewJSONWebKeySet(sdkHttp.OidcClientContext(e.backgroundCtx, client), endpoints.JWKSURL, ""); err != nil {
			e.Done()
			return nil, fmt.Errorf("%s: unable to create key set: %w", op, err)
		}
	}
	validatorOpts := []jwt.Option{
		jwt.WithAllowedAudiences(cfg.AllowedAudiences...),
		jwt.WithAuthorizedParty(cfg.AuthorizedParties...),
		jwt.WithNow(e.clock.Now),
	}
	if cfg.AllowV1Issuer {
		validatorOpts = append(validatorOpts, jwt.WithAllowV1Issuer())
	}
	if cfg.ClockSkew > 0 {
		validatorOpts = append(validatorOpts, jwt.WithClockSkew(cfg.ClockSkew))
	}
	if e.validator, err = jwt.NewValidator(ks, cfg.ClientID, cfg.TenantID, cfg.Cloud, validatorOpts...); err != nil {
		e.Done()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// Done with the exchanger's background resources and must be called for
// every Exchanger created.
func (e *Exchanger) Done() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backgroundCtxCancel != nil {
		e.backgroundCtxCancel()
		e.backgroundCtxCancel = nil
	}
}

// Cache returns the exchanger's token cache, which may be nil.
func (e *Exchanger) Cache() *TokenCache { return e.cache }

// Validator returns the validator used for inbound assertions.
func (e *Exchanger) Validator() *jwt.Validator { return e.validator }

// Exchange validates the request's assertion and exchanges it for a
// downstream token, returning a cached token when a usable one exists.
// Misconfiguration is reported before any request is made. When the
// provider asks for more claims a *CAERequiredError is returned; otherwise
// provider failures are returned as an *oidc.TokenError.
//
// Concurrent identical exchanges share one request. It's cancelled once
// every caller sharing it has returned, and is bounded by
// sdk/http.DefaultTimeout whatever client is configured.
func (e *Exchanger) Exchange(ctx context.Context, req Request) (*Result, error) {
	const op = "Exchanger.Exchange"
	if err := req.validate(&e.config); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	scopes, resource := req.target(&e.config)

	claims, err := e.validator.ValidateAccessToken(ctx, req.Assertion)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidAssertion, err)
	}

	tenant := e.config.TenantID
	if cloud.IsMultiTenant(tenant) && claims.TenantID != "" {
		tenant = claims.TenantID
	}
	key := CacheKey(e.config.ClientID, tenant, claims.Subject, resource, scopes, req.Claims)

	tc := e.cache
	if req.Cache != nil {
		tc = req.Cache
	}
	if tc != nil && !req.SkipCache {
		if entry, ok := tc.Get(key); ok {
			e.logger.Debug("token cache hit", "subject", claims.Subject, "tenant", tenant)
			return e.result(entry, true), nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, oidc.ErrTokenExchange, err)
	}
	fctx, leave := e.joinFlight(ctx, key)
	defer leave()
	ch := e.group.DoChan(key, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(fctx, sdkHttp.DefaultTimeout)
		defer cancel()
		return e.requestToken(rctx, req, tenant, scopes, resource)
	})
	var entry *CacheEntry
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w: %w", op, oidc.ErrTokenExchange, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("%s: %w", op, r.Err)
		}
		entry = r.Val.(*CacheEntry)
	}
	if tc != nil {
		tc.Set(key, *entry)
	}
	e.logger.Debug("token exchanged", "subject", claims.Subject, "tenant", tenant, "expires_at", entry.ExpiresAt)
	return e.result(entry, false), nil
}

// flight is the context of a shared token request. It's cancelled when the
// last caller waiting on it returns.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// joinFlight registers the caller as a waiter on key's request and returns
// the request's context and a func to call when the caller stops waiting.
// When the last waiter leaves the request is cancelled and forgotten, so the
// next exchange for key sends a new one.
func (e *Exchanger) joinFlight(ctx context.Context, key string) (context.Context, func()) {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()
	f, ok := e.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		e.flights[key] = f
	}
	f.waiters++

	var once sync.Once
	return f.ctx, func() {
		once.Do(func() {
			e.flightMu.Lock()
			defer e.flightMu.Unlock()
			f.waiters--
			if f.waiters > 0 {
				return
			}
			f.cancel()
			if e.flights[key] == f {
				delete(e.flights, key)
			}
			e.group.Forget(key)
		})
	}
}

func (e *Exchanger) requestToken(ctx context.Context, req Request, tenant string, scopes []string, resource string) (*CacheEntry, error) {
	const op = "Exchanger.requestToken"
	endpoints, err := resolveEndpoints(e.config.Cloud, tenant, e.authorityHost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	form := url.Values{}
	form.Set("grant_type", oidc.GrantTypeJWTBearer)
	form.Set("client_id", e.config.ClientID)
	form.Set("assertion", req.Assertion)
	form.Set("requested_token_use", RequestedTokenUse)
	if resource != "" {
		form.Set("resource", resource)
	} else {
		form.Set("scope", strings.Join(scopes, " "))
	}
	if req.Claims != "" {
		form.Set("claims", req.Claims)
	}
	if err := oidc.ApplyClientAuth(form, e.config.ClientAuth, e.config.ClientID, endpoints.TokenURL, e.clock.Now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tk, err := oidc.RequestToken(ctx, e.client, endpoints.TokenURL, form, e.clock.Now)
	if err != nil {
		var te *oidc.TokenError
		if errors.As(err, &te) {
			e.logger.Error("on-behalf-of request failed",
				"status", te.StatusCode, "error", te.Code, "suberror", te.SubError,
				"error_codes", te.ErrorCodes, "correlation_id", te.CorrelationID, "trace_id", te.TraceID)
			if req.Claims == "" && isCAEResponse(te) {
				return nil, fmt.Errorf("%s: %w", op, &CAERequiredError{
					Claims:        te.Claims,
					Code:          te.Code,
					Description:   te.Description,
					SubError:      te.SubError,
					CorrelationID: te.CorrelationID,
					TokenError:    te,
				})
			}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entry := &CacheEntry{
		AccessToken: oidc.AccessToken(tk.AccessToken),
		TokenType:   tk.TokenType,
		ExpiresAt:   tk.Expiry,
		Claims:      req.Claims,
	}
	if entry.TokenType == "" {
		entry.TokenType = "Bearer"
	}
	if s, ok := tk.Extra("scope").(string); ok && s != "" {
		entry.Scope = s
	} else if resource == "" {
		entry.Scope = strings.Join(scopes, " ")
	}
	if entry.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("%s: response is missing expires_in: %w", op, oidc.ErrTokenExchange)
	}
	return entry, nil
}

func (e *Exchanger) result(entry *CacheEntry, fromCache bool) *Result {
	expiresIn := int64(entry.ExpiresAt.Sub(e.clock.Now()) / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &Result{
		AccessToken: entry.AccessToken,
		TokenType:   entry.TokenType,
		ExpiresIn:   expiresIn,
		ExpiresAt:   entry.ExpiresAt,
		Scope:       entry.Scope,
		FromCache:   fromCache,
	}
}

func resolveEndpoints(c cloud.Cloud, tenant, authorityHost string) (cloud.Endpoints, error) {
	var opt []cloud.Option
	if authorityHost != "" {
		opt = append(opt, cloud.WithAuthorityHost(authorityHost))
	}
	return cloud.ResolveEndpoints(c, tenant, opt...)
}
