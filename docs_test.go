// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package capentra_test

import (
	"net/http"

	"github.com/hashicorp/cap-entra/cloud"
	"github.com/hashicorp/cap-entra/jwt"
	"github.com/hashicorp/cap-entra/obo"
	"github.com/hashicorp/cap-entra/oidc"
	"github.com/hashicorp/cap-entra/seal"
	"github.com/hashicorp/cap-entra/session"
	"github.com/hashicorp/go-hclog"
)

func Example_session() {
	logger := hclog.New(&hclog.LoggerOptions{Name: "app"})

	// Create a Config for a confidential client in the commercial cloud
	cfg, err := oidc.NewConfig(
		"your_client_id",
		"your_tenant_id",
		cloud.Commercial,
		"https://app.example.com/auth/callback",
		oidc.ClientSecretAuth{Secret: "your_client_secret"},
	)
	if err != nil {
		// handle error
	}

	// Create a provider
	p, err := oidc.NewProvider(cfg, oidc.WithLogger(logger))
	if err != nil {
		// handle error
	}
	defer p.Done()

	// Session cookies are sealed with a secret of at least 32 bytes
	sealer, err := seal.NewSealer("a secret of at least thirty-two bytes", seal.WithKeyCache(seal.NewKeyCache()))
	if err != nil {
		// handle error
	}

	m, err := session.NewManager(p, sealer,
		session.WithLogger(logger),
		session.WithPostLogoutRedirect("https://app.example.com/"),
	)
	if err != nil {
		// handle error
	}

	mux := http.NewServeMux()
	mux.Handle("GET /auth/login", m.LoginHandler())
	mux.Handle("GET /auth/callback", m.CallbackHandler())
	mux.Handle("POST /auth/refresh", m.RefreshHandler())
	mux.Handle("GET /auth/session", m.SessionHandler())
	mux.Handle("GET /auth/logout", m.LogoutHandler())
}

func Example_api() {
	// Create an exchanger for an API that calls a downstream API on behalf
	// of its callers
	e, err := obo.NewExchanger(obo.Config{
		ClientID:   "your_api_client_id",
		TenantID:   "your_tenant_id",
		Cloud:      cloud.Commercial,
		ClientAuth: oidc.ClientSecretAuth{Secret: "your_client_secret"},
		Scopes:     []string{"api://downstream/Files.Read"},
	})
	if err != nil {
		// handle error
	}
	defer e.Done()

	apiHandler := func(w http.ResponseWriter, r *http.Request) {
		// a missing token is rejected by Exchange
		assertion, _ := jwt.ExtractBearerToken(r.Header.Get("Authorization"))
		res, err := e.Exchange(r.Context(), obo.Request{Assertion: assertion})
		if err != nil {
			// a claims challenge is returned to the caller as a
			// WWW-Authenticate header
			obo.WriteError(w, err, "")
			return
		}
		_ = res.AccessToken // call the downstream API
	}
	http.HandleFunc("/api/files", apiHandler)
}
