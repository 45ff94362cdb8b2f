// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/cap-entra/oidc"
	"github.com/hashicorp/cap-entra/sdk/errkind"
)

// ErrorResponse is the JSON body of a failed request. Both fields are
// generic; details only go to the log.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// TokenResponse is the JSON body of a successful refresh. ExpiresAt is in
// unix seconds.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

// LoginHandler starts a sign-in. The optional returnTo query parameter must
// resolve to the application's own origin; login_hint, domain_hint and
// prompt are passed through to the provider.
func (m *Manager) LoginHandler() http.HandlerFunc {
	const op = "session.(Manager).LoginHandler"
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		returnTo, err := oidc.ValidateReturnURL(q.Get("returnTo"), m.baseURL)
		if err != nil {
			m.fail(w, r, fmt.Errorf("%s: %w", op, err))
			return
		}
		fs, err := oidc.NewFlowState(oidc.DefaultFlowStateTTL, oidc.WithReturnTo(returnTo), oidc.WithNow(m.clock.Now))
		if err != nil {
			m.fail(w, r, fmt.Errorf("%s: %w", op, err))
			return
		}
		sealed, err := m.sealer.Seal(fs)
		if err != nil {
			m.fail(w, r, fmt.Errorf("%s: %w", op, err))
			return
		}
		authURL, err := m.provider.AuthURL(r.Context(), fs,
			oidc.WithLoginHint(q.Get("login_hint")),
			oidc.WithDomainHint(q.Get("domain_hint")),
			oidc.WithPrompt(q.Get("prompt")),
		)
		if err != nil {
			m.fail(w, r, fmt.Errorf("%s: %w", op, err))
			return
		}
		m.setCookie(w, PKCECookieName, sealed, DefaultPKCECookieTTL)
		noStore(w)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler completes a sign-in. The PKCE cookie is consumed whatever
// the outcome. On success the session cookies are set and the browser is
// sent to the return location; on failure no session cookie is set and the
// browser is sent to the error path with a generic error code.
func (m *Manager) CallbackHandler() http.HandlerFunc {
	const op = "session.(Manager).CallbackHandler"
	return func(w http.ResponseWriter, r *http.Request) {
		m.clearCookie(w, PKCECookieName)

		sealed, ok := cookieValue(r, PKCECookieName)
		if !ok {
			m.fail(w, r, fmt.Errorf("%s: pkce cookie is missing: %w", op, oidc.ErrStateMissing))
			return
		}
		var fs oidc.FlowState
		if err := m.sealer.Unseal(sealed, &fs); err != nil {
			m.fail(w, r, fmt.Errorf("%s: pkce cookie: %w", op, err))
			return
		}
		if err := fs.Validate(oidc.WithNow(m.clock.Now)); err != nil {
			m.fail(w, r, fmt.Errorf("%s: %w", op, err))
			return
		}
		returnTo, err := m.signIn(r.Context(), w, r, &fs)
		if err != nil {
			m.fail(w, r, fmt.Errorf("%s: %w", op, err))
			return
		}
		noStore(w)
		http.Redirect(w, r, returnTo, http.StatusFound)
	}
}

// RefreshHandler responds with a fresh access token as a TokenResponse. It
// accepts GET and POST.
func (m *Manager) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.Header().Set("Allow", "GET, POST")
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed.")
			return
		}
		res, err := m.Refresh(r.Context(), w, r)
		if err != nil {
			m.logger.Error("refresh failed", "error", err)
			s := errkind.Of(err).Suggestion()
			writeError(w, s.Status, s.Code, s.Message)
			return
		}
		writeJSON(w, http.StatusOK, TokenResponse{
			AccessToken: string(res.AccessToken),
			TokenType:   res.TokenType,
			ExpiresAt:   res.ExpiresAt.Unix(),
		})
	}
}

// SessionHandler responds with the signed in user's claims, or 401.
func (m *Manager) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.User(r)
		if err != nil {
			m.logger.Debug("no session", "error", err)
			s := errkind.NotAuthenticated.Suggestion()
			writeError(w, s.Status, s.Code, s.Message)
			return
		}
		writeJSON(w, http.StatusOK, claims)
	}
}

// LogoutHandler clears the session cookies and sends the browser to the
// provider's sign-out endpoint.
func (m *Manager) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.ClearSession(w)
		noStore(w)
		logoutURL, err := m.provider.LogoutURL(m.opts.withPostLogoutRedirect)
		if err != nil {
			m.logger.Error("unable to build logout url", "error", err)
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		http.Redirect(w, r, logoutURL, http.StatusFound)
	}
}

// fail logs err and redirects to the error path.
func (m *Manager) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := errkind.Of(err)
	m.logger.Error("sign-in failed", "kind", kind, "hint", kind.Suggestion().Hint, "error", err)
	noStore(w)
	http.Redirect(w, r, m.errorURL(err), http.StatusFound)
}

func errorCode(err error) string {
	return errkind.Of(err).Suggestion().Code
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	noStore(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Description: msg})
}
