// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/rsa"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/cap-entra/cloud"
	"github.com/hashicorp/cap-entra/oidc/clientassertion"
	sdkHttp "github.com/hashicorp/cap-entra/sdk/http"
	"github.com/hashicorp/cap-entra/sdk/id"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// Defaults used by a TestProvider until they are changed with its setters.
const (
	TestTenantID     = "11111111-2222-3333-4444-555555555555"
	TestClientID     = "test-client-id"
	TestClientSecret = "test-client-secret"
	TestSubject      = "alice-subject"
	TestObjectID     = "66666666-7777-8888-9999-000000000000"
	TestRedirectURL  = "https://app.example.com/auth/callback"

	testKeyID = "test-key"

	// graphAppID is the audience of tokens for Microsoft Graph.
	graphAppID = "00000003-0000-0000-c000-000000000000"
)

// TestProvider is an in-process Entra ID emulator serving the authorize,
// token, logout and JWKS endpoints of a tenant over TLS. Tokens it issues
// carry the real issuer of the configured cloud and tenant, so they pass the
// same issuer checks as production tokens while the endpoints are reached
// with WithAuthorityHost.
//
// The token endpoint supports the authorization_code (with PKCE), refresh
// token and jwt-bearer on-behalf-of grants, and authenticates clients with a
// secret or a certificate signed client assertion.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	signingKey *rsa.PrivateKey
	jwks       *jose.JSONWebKeySet

	mu                  sync.Mutex
	cloud               cloud.Cloud
	tenantID            string
	clientID            string
	clientSecret        string
	clientCert          *x509.Certificate
	allowedRedirectURIs []string
	subject             string
	customClaims        map[string]interface{}
	customAudience      string
	omitIDToken         bool
	omitRefreshToken    bool
	tokenTTL            time.Duration
	nowFunc             func() time.Time
	caeClaims           string
	authError           *testErrorReply
	tokenError          *testErrorReply
	codes               map[string]testCodeGrant
	refreshTokens       map[string]string
	tokenRequests       []url.Values

	t *testing.T
}

type testCodeGrant struct {
	challenge   string
	method      string
	nonce       string
	redirectURI string
	scope       string
}

type testErrorReply struct {
	status      int
	code        string
	description string
}

// StartTestProvider creates a disposable TestProvider for the default test
// tenant and client in the commercial cloud. It's stopped when the test
// ends.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		cloud:               cloud.Commercial,
		tenantID:            TestTenantID,
		clientID:            TestClientID,
		clientSecret:        TestClientSecret,
		allowedRedirectURIs: []string{TestRedirectURL},
		subject:             TestSubject,
		customClaims: map[string]interface{}{
			"name":               "Alice Smith",
			"preferred_username": "alice@example.com",
			"email":              "alice@example.com",
			"oid":                TestObjectID,
		},
		tokenTTL:      time.Hour,
		nowFunc:       time.Now,
		codes:         map[string]testCodeGrant{},
		refreshTokens: map[string]string{},
		t:             t,
	}
	p.signingKey = TestGenerateRSAKey(t)
	p.jwks = &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       p.signingKey.Public(),
				KeyID:     testKeyID,
				Algorithm: string(jose.RS256),
				Use:       "sig",
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{tenant}/oauth2/v2.0/authorize", p.handleAuthorize)
	mux.HandleFunc("POST /{tenant}/oauth2/v2.0/token", p.handleToken)
	mux.HandleFunc("GET /{tenant}/oauth2/v2.0/logout", p.handleLogout)
	mux.HandleFunc("GET /{tenant}/discovery/v2.0/keys", p.handleKeys)

	p.httpServer = httptest.NewUnstartedServer(mux)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// ConfigOptions returns the Config options that point a Config at the test
// provider.
func (p *TestProvider) ConfigOptions() []Option {
	return []Option{WithAuthorityHost(p.Addr()), WithProviderCA(p.CACert())}
}

// TenantID returns the tenant whose tokens the provider issues.
func (p *TestProvider) TenantID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tenantID
}

// Cloud returns the cloud whose issuer the provider's tokens carry.
func (p *TestProvider) Cloud() cloud.Cloud {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cloud
}

// Issuer returns the v2 issuer of the provider's tokens.
func (p *TestProvider) Issuer() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloud.ExpectedIssuer(p.cloud, p.tenantID, true)
}

// JWKSURL returns the URL of the provider's signing keys.
func (p *TestProvider) JWKSURL() string {
	return p.Addr() + "/" + p.TenantID() + "/discovery/v2.0/keys"
}

// SigningKey returns the key the provider signs tokens with.
func (p *TestProvider) SigningKey() *rsa.PrivateKey { return p.signingKey }

// SetClientCreds is for configuring the client information required for the
// token endpoint. An empty secret makes the client public unless a
// certificate is set.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetClientCertificate registers a certificate for the client. Client
// assertions signed by its key are then accepted.
func (p *TestProvider) SetClientCertificate(cert *x509.Certificate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientCert = cert
}

// SetTenant changes the cloud and tenant of the issued tokens.
func (p *TestProvider) SetTenant(c cloud.Cloud, tenantID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cloud = c
	p.tenantID = tenantID
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs.
// If not configured TestRedirectURL is used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetSubject sets the sub claim of issued tokens.
func (p *TestProvider) SetSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subject = sub
}

// SetCustomClaims lets you set claims added to every issued id_token. They
// replace the default profile claims.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetCustomAudience configures the audience of issued id_tokens.
func (p *TestProvider) SetCustomAudience(customAudience string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customAudience = customAudience
}

// OmitIDTokens forces an error state where the token endpoint doesn't return
// an id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// OmitRefreshTokens stops the token endpoint from returning refresh tokens.
func (p *TestProvider) OmitRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitRefreshToken = true
}

// SetTokenTTL sets the lifetime of issued tokens.
func (p *TestProvider) SetTokenTTL(ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenTTL = ttl
}

// SetNowFunc sets the provider's clock.
func (p *TestProvider) SetNowFunc(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nowFunc = now
}

// SetCAERequired makes on-behalf-of requests without a claims parameter fail
// with interaction_required and the given claims challenge. An empty string
// turns it off.
func (p *TestProvider) SetCAERequired(claims string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.caeClaims = claims
}

// SetAuthError makes the authorize endpoint redirect with the error. An empty
// code turns it off.
func (p *TestProvider) SetAuthError(code, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authError = nil
	if code != "" {
		p.authError = &testErrorReply{code: code, description: description}
	}
}

// SetTokenError makes every token request fail with the status and error. A
// zero status turns it off.
func (p *TestProvider) SetTokenError(status int, code, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenError = nil
	if status != 0 {
		p.tokenError = &testErrorReply{status: status, code: code, description: description}
	}
}

// TokenRequests returns a copy of every form posted to the token endpoint.
func (p *TestProvider) TokenRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]url.Values, 0, len(p.tokenRequests))
	for _, r := range p.tokenRequests {
		c := url.Values{}
		for k, v := range r {
			c[k] = append([]string(nil), v...)
		}
		out = append(out, c)
	}
	return out
}

// TokenRequestCount returns how many token requests used the grant type. An
// empty grant type counts every request.
func (p *TestProvider) TokenRequestCount(grantType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.tokenRequests {
		if grantType == "" || r.Get("grant_type") == grantType {
			n++
		}
	}
	return n
}

// IssueAccessToken mints an access token for audience signed by the
// provider. The claims override the defaults (iss, tid, sub, oid, azp, scp,
// iat, nbf, exp, ver).
func (p *TestProvider) IssueAccessToken(t *testing.T, audience string, claims map[string]interface{}) string {
	t.Helper()
	p.mu.Lock()
	c := p.accessTokenClaims(audience, p.clientID, "access_as_user")
	p.mu.Unlock()
	for k, v := range claims {
		if v == nil {
			delete(c, k)
			continue
		}
		c[k] = v
	}
	return TestSignJWT(t, p.signingKey, testKeyID, josejwt.Claims{}, c)
}

func (p *TestProvider) accessTokenClaims(audience, azp, scope string) map[string]interface{} {
	now := p.nowFunc()
	c := map[string]interface{}{
		"iss": cloud.ExpectedIssuer(p.cloud, p.tenantID, true),
		"aud": audience,
		"sub": p.subject,
		"tid": p.tenantID,
		"oid": TestObjectID,
		"azp": azp,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(p.tokenTTL).Unix(),
		"ver": "2.0",
	}
	if scope != "" {
		c["scp"] = scope
	}
	return c
}

func (p *TestProvider) idTokenClaims(nonce string) map[string]interface{} {
	now := p.nowFunc()
	aud := p.clientID
	if p.customAudience != "" {
		aud = p.customAudience
	}
	c := map[string]interface{}{
		"iss": cloud.ExpectedIssuer(p.cloud, p.tenantID, true),
		"aud": aud,
		"sub": p.subject,
		"tid": p.tenantID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(p.tokenTTL).Unix(),
		"ver": "2.0",
	}
	if nonce != "" {
		c["nonce"] = nonce
	}
	for k, v := range p.customClaims {
		c[k] = v
	}
	return c
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, status int, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) writeTokenError(w http.ResponseWriter, status int, code, description string, extra map[string]interface{}) {
	body := map[string]interface{}{
		"error":          code,
		"correlation_id": "test-correlation-id",
		"trace_id":       "test-trace-id",
	}
	if description != "" {
		body["error_description"] = description
	}
	for k, v := range extra {
		body[k] = v
	}
	p.writeJSON(w, status, body)
}

func (p *TestProvider) validTenant(tenant string) bool {
	return strings.EqualFold(tenant, p.tenantID) || cloud.IsMultiTenant(tenant)
}

func (p *TestProvider) handleAuthorize(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri")
	if !p.validTenant(req.PathValue("tenant")) || redirectURI == "" || !contains(p.allowedRedirectURIs, redirectURI) {
		// never redirect to an unregistered uri
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	redirect := func(params url.Values) {
		params.Set("state", qv.Get("state"))
		http.Redirect(w, req, redirectURI+"?"+params.Encode(), http.StatusFound)
	}
	authError := func(code, desc string) {
		params := url.Values{"error": {code}}
		if desc != "" {
			params.Set("error_description", desc)
		}
		redirect(params)
	}

	switch {
	case p.authError != nil:
		authError(p.authError.code, p.authError.description)
		return
	case qv.Get("client_id") != p.clientID:
		authError("unauthorized_client", "unknown client_id")
		return
	case qv.Get("response_type") != "code":
		authError("unsupported_response_type", "")
		return
	case !contains(strings.Fields(qv.Get("scope")), ScopeOpenID):
		authError("invalid_scope", "openid scope is required")
		return
	case qv.Get("state") == "":
		authError("invalid_request", "missing state parameter")
		return
	case qv.Get("code_challenge") == "" || qv.Get("code_challenge_method") != string(S256):
		authError("invalid_request", "S256 code_challenge is required")
		return
	}

	code, err := id.New("code")
	if err != nil {
		authError("server_error", "")
		return
	}
	p.codes[code] = testCodeGrant{
		challenge:   qv.Get("code_challenge"),
		method:      qv.Get("code_challenge_method"),
		nonce:       qv.Get("nonce"),
		redirectURI: redirectURI,
		scope:       qv.Get("scope"),
	}
	redirect(url.Values{"code": {code}})
}

func (p *TestProvider) handleLogout(w http.ResponseWriter, req *http.Request) {
	if u := req.URL.Query().Get("post_logout_redirect_uri"); u != "" {
		http.Redirect(w, req, u, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (p *TestProvider) handleKeys(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.validTenant(req.PathValue("tenant")) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	p.writeJSON(w, http.StatusOK, p.jwks)
}

func (p *TestProvider) handleToken(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := req.ParseForm(); err != nil {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_request", "malformed form", nil)
		return
	}
	form := url.Values{}
	for k, v := range req.PostForm {
		form[k] = append([]string(nil), v...)
	}
	p.tokenRequests = append(p.tokenRequests, form)

	switch {
	case p.tokenError != nil:
		p.writeTokenError(w, p.tokenError.status, p.tokenError.code, p.tokenError.description, nil)
		return
	case !p.validTenant(req.PathValue("tenant")):
		p.writeTokenError(w, http.StatusBadRequest, "invalid_tenant", "unknown tenant", nil)
		return
	}
	if status, code, desc := p.authenticateClient(form, p.Addr()+req.URL.Path); status != 0 {
		p.writeTokenError(w, status, code, desc, nil)
		return
	}

	switch form.Get("grant_type") {
	case GrantTypeAuthorizationCode:
		p.authorizationCodeGrant(w, form)
	case GrantTypeRefreshToken:
		p.refreshTokenGrant(w, form)
	case GrantTypeJWTBearer:
		p.onBehalfOfGrant(w, form)
	default:
		p.writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type", nil)
	}
}

// authenticateClient returns a zero status when the client's credentials
// are valid.
func (p *TestProvider) authenticateClient(form url.Values, tokenURL string) (int, string, string) {
	if form.Get("client_id") != p.clientID {
		return http.StatusBadRequest, "unauthorized_client", "unknown client_id"
	}
	secret, assertion := form.Get("client_secret"), form.Get("client_assertion")
	switch {
	case secret != "":
		if p.clientSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(p.clientSecret)) != 1 {
			return http.StatusUnauthorized, "invalid_client", "invalid client secret"
		}
	case assertion != "":
		if form.Get("client_assertion_type") != clientassertion.JWTTypeParam {
			return http.StatusBadRequest, "invalid_request", "bad client_assertion_type"
		}
		if err := p.verifyClientAssertion(assertion, tokenURL); err != "" {
			return http.StatusUnauthorized, "invalid_client", err
		}
	case p.clientSecret != "" || p.clientCert != nil:
		return http.StatusUnauthorized, "invalid_client", "client credentials are required"
	}
	return 0, "", ""
}

func (p *TestProvider) verifyClientAssertion(assertion, tokenURL string) string {
	if p.clientCert == nil {
		return "no certificate is registered"
	}
	parsed, err := josejwt.ParseSigned(assertion, []jose.SignatureAlgorithm{jose.RS256, jose.RS384, jose.RS512})
	if err != nil {
		return "malformed client assertion"
	}
	var std josejwt.Claims
	if err := parsed.Claims(p.clientCert.PublicKey, &std); err != nil {
		return "client assertion signature is invalid"
	}
	if err := std.ValidateWithLeeway(josejwt.Expected{
		Issuer:      p.clientID,
		Subject:     p.clientID,
		AnyAudience: josejwt.Audience{tokenURL},
		Time:        p.nowFunc(),
	}, 0); err != nil {
		return "client assertion claims are invalid: " + err.Error()
	}
	if std.ID == "" {
		return "client assertion has no jti"
	}
	hdr, err := jwtHeader(assertion)
	if err != nil {
		return "malformed client assertion header"
	}
	if x5t, _ := hdr["x5t"].(string); x5t != clientassertion.Thumbprint(p.clientCert) {
		return "client assertion x5t does not match the certificate"
	}
	return ""
}

func jwtHeader(token string) (map[string]interface{}, error) {
	segment, _, _ := strings.Cut(token, ".")
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, err
	}
	hdr := map[string]interface{}{}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, err
	}
	return hdr, nil
}

func (p *TestProvider) authorizationCodeGrant(w http.ResponseWriter, form url.Values) {
	code := form.Get("code")
	grant, ok := p.codes[code]
	if !ok {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code", nil)
		return
	}
	// codes are single use
	delete(p.codes, code)

	switch {
	case form.Get("redirect_uri") != grant.redirectURI:
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match", nil)
		return
	case form.Get("code_verifier") == "":
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "code_verifier is required", nil)
		return
	case oauth2.S256ChallengeFromVerifier(form.Get("code_verifier")) != grant.challenge:
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "PKCE verification failed", nil)
		return
	}
	p.writeTokens(w, grant.scope, grant.nonce)
}

func (p *TestProvider) refreshTokenGrant(w http.ResponseWriter, form url.Values) {
	rt := form.Get("refresh_token")
	scope, ok := p.refreshTokens[rt]
	if !ok {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "refresh token is invalid or expired", nil)
		return
	}
	// refresh tokens rotate
	delete(p.refreshTokens, rt)
	if s := form.Get("scope"); s != "" {
		scope = s
	}
	p.writeTokens(w, scope, "")
}

func (p *TestProvider) writeTokens(w http.ResponseWriter, scope, nonce string) {
	accessToken, err := signJWT(p.signingKey, testKeyID, josejwt.Claims{}, p.accessTokenClaims(graphAppID, p.clientID, scopeClaim(scope)))
	if err != nil {
		p.writeTokenError(w, http.StatusInternalServerError, "server_error", "", nil)
		return
	}
	reply := map[string]interface{}{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   int64(p.tokenTTL / time.Second),
		"scope":        scope,
	}
	if !p.omitIDToken && contains(strings.Fields(scope), ScopeOpenID) {
		idToken, err := signJWT(p.signingKey, testKeyID, josejwt.Claims{}, p.idTokenClaims(nonce))
		if err != nil {
			p.writeTokenError(w, http.StatusInternalServerError, "server_error", "", nil)
			return
		}
		reply["id_token"] = idToken
	}
	if !p.omitRefreshToken {
		rt, err := id.New("rt")
		if err != nil {
			p.writeTokenError(w, http.StatusInternalServerError, "server_error", "", nil)
			return
		}
		p.refreshTokens[rt] = scope
		reply["refresh_token"] = rt
	}
	p.writeJSON(w, http.StatusOK, reply)
}

func (p *TestProvider) onBehalfOfGrant(w http.ResponseWriter, form url.Values) {
	if form.Get("requested_token_use") != "on_behalf_of" {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_request", "requested_token_use must be on_behalf_of", nil)
		return
	}
	assertion := form.Get("assertion")
	parsed, err := josejwt.ParseSigned(assertion, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "malformed assertion", nil)
		return
	}
	var std josejwt.Claims
	if err := parsed.Claims(p.signingKey.Public(), &std); err != nil {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "assertion signature is invalid", nil)
		return
	}
	if err := std.ValidateWithLeeway(josejwt.Expected{AnyAudience: josejwt.Audience{p.clientID}, Time: p.nowFunc()}, time.Minute); err != nil {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "assertion is not valid: "+err.Error(), nil)
		return
	}

	scope, resource := form.Get("scope"), form.Get("resource")
	if (scope == "") == (resource == "") {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_request", "exactly one of scope or resource is required", nil)
		return
	}
	if p.caeClaims != "" && form.Get("claims") == "" {
		p.writeTokenError(w, http.StatusBadRequest, "interaction_required",
			"AADSTS50076: additional claims are required", map[string]interface{}{
				"error_codes": []int{50076},
				"suberror":    "claims_challenge",
				"claims":      p.caeClaims,
			})
		return
	}

	audience := resource
	if audience == "" {
		audience = audienceFromScope(scope)
	}
	claims := p.accessTokenClaims(audience, p.clientID, scopeClaim(scope))
	claims["sub"] = std.Subject
	accessToken, err := signJWT(p.signingKey, testKeyID, josejwt.Claims{}, claims)
	if err != nil {
		p.writeTokenError(w, http.StatusInternalServerError, "server_error", "", nil)
		return
	}
	reply := map[string]interface{}{
		"access_token":   accessToken,
		"token_type":     "Bearer",
		"expires_in":     int64(p.tokenTTL / time.Second),
		"ext_expires_in": int64(p.tokenTTL / time.Second),
	}
	if scope != "" {
		reply["scope"] = scope
	}
	p.writeJSON(w, http.StatusOK, reply)
}

// scopeClaim returns the scp claim for the requested scopes: the scopes
// without their resource prefix and without the oidc scopes.
func scopeClaim(scope string) string {
	var out []string
	for _, s := range strings.Fields(scope) {
		switch s {
		case ScopeOpenID, "profile", "email", "offline_access":
			continue
		}
		if i := strings.LastIndex(s, "/"); i >= 0 {
			s = s[i+1:]
		}
		if s == ".default" || s == "" {
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, " ")
}

// audienceFromScope returns the resource of the first resource qualified
// scope, or Graph.
func audienceFromScope(scope string) string {
	for _, s := range strings.Fields(scope) {
		if i := strings.LastIndex(s, "/"); i > 0 && strings.Contains(s, "://") {
			return s[:i]
		}
	}
	return graphAppID
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// HttpClient returns an http client that trusts the provider's certificate.
// It doesn't follow redirects, so the authorize endpoint's response can be
// inspected.
func (p *TestProvider) HttpClient() *http.Client {
	p.t.Helper()
	client, err := sdkHttp.NewClient(p.caCert, 0)
	require.NoError(p.t, err)
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client
}
