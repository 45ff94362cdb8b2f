// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/cap-entra/oidc"
	"github.com/hashicorp/cap-entra/seal"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// DefaultErrorPath is where failed sign-ins are redirected.
const DefaultErrorPath = "/auth/error"

// refreshState is the payload of the refresh cookie. The token is a plain
// string since oidc.RefreshToken redacts itself when marshaled.
type refreshState struct {
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Manager drives the browser sign-in flow and keeps the resulting session in
// sealed cookies. It holds no per user state, so one Manager serves every
// request.
type Manager struct {
	provider *oidc.Provider
	sealer   *seal.Sealer
	logger   hclog.Logger
	clock    clockwork.Clock
	baseURL  string
	opts     managerOptions
}

// NewManager creates a Manager.
//
// Supported options:
//   - WithInsecureCookies
//   - WithLogger
//   - WithClock
//   - WithErrorPath
//   - WithBaseURL
//   - WithPostLogoutRedirect
//   - WithSessionTTL
//   - WithCookieDomain
func NewManager(provider *oidc.Provider, sealer *seal.Sealer, opt ...Option) (*Manager, error) {
	const op = "session.NewManager"
	switch {
	case provider == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, ErrNilParameter)
	case sealer == nil:
		return nil, fmt.Errorf("%s: sealer is nil: %w", op, ErrNilParameter)
	}
	opts := getManagerOpts(opt...)
	if opts.withSessionTTL <= 0 {
		return nil, fmt.Errorf("%s: session ttl not greater than zero: %w", op, ErrInvalidParameter)
	}
	if opts.withErrorPath == "" || opts.withErrorPath[0] != '/' {
		return nil, fmt.Errorf("%s: error path %q is not an absolute path: %w", op, opts.withErrorPath, ErrInvalidParameter)
	}

	base := opts.withBaseURL
	if base == "" {
		base = provider.Config().RedirectURL
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%s: base url %q is not an absolute http(s) url: %w", op, base, ErrInvalidParameter)
	}

	return &Manager{
		provider: provider,
		sealer:   sealer,
		logger:   opts.withLogger.Named("session"),
		clock:    opts.withClock,
		baseURL:  u.Scheme + "://" + u.Host,
		opts:     opts,
	}, nil
}

// RefreshResult is a freshly issued access token.
type RefreshResult struct {
	AccessToken oidc.AccessToken
	TokenType   string
	ExpiresAt   time.Time
}

// Refresh redeems the refresh cookie for a new access token and rotates the
// cookie when the provider issues a new refresh token. It returns
// ErrNotAuthenticated, after clearing the session cookies, when there's no
// usable refresh cookie or the provider rejects the token. Other failures
// leave the cookies alone so the caller can retry.
func (m *Manager) Refresh(ctx context.Context, w http.ResponseWriter, r *http.Request) (*RefreshResult, error) {
	const op = "session.(Manager).Refresh"
	notAuthenticated := func(reason string) error {
		m.ClearSession(w)
		return fmt.Errorf("%s: %s: %w", op, reason, ErrNotAuthenticated)
	}

	sealed, ok := cookieValue(r, RefreshCookieName)
	if !ok {
		return nil, notAuthenticated("refresh cookie is missing")
	}
	var rs refreshState
	if err := m.sealer.Unseal(sealed, &rs); err != nil {
		m.logger.Debug("unable to unseal refresh cookie", "error", err)
		return nil, notAuthenticated("refresh cookie is invalid")
	}
	now := m.clock.Now()
	if rs.RefreshToken == "" || !now.Before(rs.ExpiresAt) {
		return nil, notAuthenticated("refresh cookie is expired")
	}

	tk, err := m.provider.Refresh(ctx, oidc.RefreshToken(rs.RefreshToken))
	if err != nil {
		var tErr *oidc.TokenError
		if errors.As(err, &tErr) && tErr.Code == "invalid_grant" {
			return nil, notAuthenticated("refresh token was rejected")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if tk.RefreshToken != "" {
		next, err := m.sealer.Seal(refreshState{
			RefreshToken: string(tk.RefreshToken),
			ExpiresAt:    now.Add(m.opts.withSessionTTL),
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		m.setCookie(w, RefreshCookieName, next, m.opts.withSessionTTL)
	}

	tokenType := tk.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &RefreshResult{
		AccessToken: tk.AccessToken,
		TokenType:   tokenType,
		ExpiresAt:   tk.Expiry,
	}, nil
}

// User returns the claims stored in the user cookie.
func (m *Manager) User(r *http.Request) (*oidc.UserClaims, error) {
	const op = "session.(Manager).User"
	sealed, ok := cookieValue(r, UserCookieName)
	if !ok {
		return nil, fmt.Errorf("%s: user cookie is missing: %w", op, ErrNotAuthenticated)
	}
	var claims oidc.UserClaims
	if err := m.sealer.Unseal(sealed, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNotAuthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: user cookie has no subject: %w", op, ErrNotAuthenticated)
	}
	return &claims, nil
}

// signIn completes a callback request and returns where to send the browser.
// Nothing is written to w unless every step succeeds.
func (m *Manager) signIn(ctx context.Context, w http.ResponseWriter, r *http.Request, fs *oidc.FlowState) (string, error) {
	const op = "session.(Manager).signIn"
	q := r.URL.Query()
	if code := q.Get("error"); code != "" {
		m.logger.Error("provider returned an error", "error", code, "error_description", q.Get("error_description"))
		return "", fmt.Errorf("%s: provider error %q: %w", op, code, oidc.ErrLoginFailed)
	}
	if err := oidc.ValidateState(q.Get("state"), fs.State); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	tk, err := m.provider.Exchange(ctx, q.Get("code"), fs.Verifier)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	claims, err := m.provider.VerifyIdToken(ctx, tk.IdToken, fs.Nonce)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	user, err := m.sealer.Seal(claims)
	if err != nil {
		return "", fmt.Errorf("%s: user cookie: %w", op, err)
	}
	var refresh string
	if tk.RefreshToken != "" {
		refresh, err = m.sealer.Seal(refreshState{
			RefreshToken: string(tk.RefreshToken),
			ExpiresAt:    m.clock.Now().Add(m.opts.withSessionTTL),
		})
		if err != nil {
			return "", fmt.Errorf("%s: refresh cookie: %w", op, err)
		}
	} else {
		m.logger.Warn("no refresh token was issued, is the offline_access scope requested?")
	}

	m.setCookie(w, UserCookieName, user, m.opts.withSessionTTL)
	if refresh != "" {
		m.setCookie(w, RefreshCookieName, refresh, m.opts.withSessionTTL)
	}
	m.logger.Debug("signed in", "sub", claims.Subject, "tid", claims.TenantID)
	return fs.ReturnTo, nil
}

func (m *Manager) errorURL(err error) string {
	q := url.Values{"error": {errorCode(err)}}
	return m.opts.withErrorPath + "?" + q.Encode()
}
