// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package session provides http handlers for browser sign-in with Entra ID
using the authorization code flow with PKCE. The session lives entirely in
sealed cookies:

  - __entra_pkce holds the attempt's verifier, state, nonce and return
    location for ten minutes, and is consumed by the callback.
  - __entra_refresh holds the refresh token and its expiry.
  - __entra_user holds the verified id_token claims.

All cookies are HttpOnly, SameSite=Lax and Secure unless WithInsecureCookies
is used.

Example:

	cfg, err := oidc.NewConfig(clientID, tenantID, cloud.Commercial,
		"https://app.example.com/auth/callback", oidc.ClientSecretAuth{Secret: secret})
	// handle error
	p, err := oidc.NewProvider(cfg)
	// handle error
	defer p.Done()
	sealer, err := seal.NewSealer(cookieSecret, seal.WithKeyCache(seal.NewKeyCache()))
	// handle error
	m, err := session.NewManager(p, sealer, session.WithPostLogoutRedirect("https://app.example.com/"))
	// handle error

	mux := http.NewServeMux()
	mux.Handle("GET /auth/login", m.LoginHandler())
	mux.Handle("GET /auth/callback", m.CallbackHandler())
	mux.Handle("POST /auth/refresh", m.RefreshHandler())
	mux.Handle("GET /auth/session", m.SessionHandler())
	mux.Handle("GET /auth/logout", m.LogoutHandler())

Failed sign-ins redirect to the error path (DefaultErrorPath unless
WithErrorPath is used) with an error query parameter holding one of the
generic codes of errkind, e.g. /auth/error?error=invalid_state. Provider
error text is logged, never echoed to the browser.
*/
package session
