// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"net/http"
	"time"
)

// Cookie names. They're part of the contract with browsers holding existing
// sessions and must not change.
const (
	PKCECookieName    = "__entra_pkce"
	RefreshCookieName = "__entra_refresh"
	UserCookieName    = "__entra_user"
)

const (
	// DefaultPKCECookieTTL is the lifetime of a sign-in attempt.
	DefaultPKCECookieTTL = 10 * time.Minute

	// DefaultSessionTTL is the lifetime of the refresh and user cookies. The
	// refresh token's own expiry is tracked inside its cookie.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

func (m *Manager) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.opts.withCookieDomain,
		MaxAge:   int(ttl / time.Second),
		Expires:  m.clock.Now().Add(ttl).UTC(),
		HttpOnly: true,
		Secure:   !m.opts.withInsecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   m.opts.withCookieDomain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   !m.opts.withInsecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession expires every session cookie.
func (m *Manager) ClearSession(w http.ResponseWriter) {
	m.clearCookie(w, PKCECookieName)
	m.clearCookie(w, RefreshCookieName)
	m.clearCookie(w, UserCookieName)
}

func cookieValue(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
