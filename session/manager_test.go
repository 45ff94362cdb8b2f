// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/cap-entra/oidc"
	"github.com/hashicorp/cap-entra/sdk/errkind"
	"github.com/hashicorp/cap-entra/seal"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testAppURL   = "https://app.example.com"
	testLoginURL = testAppURL + "/auth/login"
)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type testEnv struct {
	tp       *oidc.TestProvider
	provider *oidc.Provider
	sealer   *seal.Sealer
	clock    fakeClock
	m        *Manager
}

func testSetup(t *testing.T, opt ...Option) *testEnv {
	t.Helper()
	require := require.New(t)
	tp := oidc.StartTestProvider(t)
	cfg, err := oidc.NewConfig(oidc.TestClientID, tp.TenantID(), tp.Cloud(), oidc.TestRedirectURL,
		oidc.ClientSecretAuth{Secret: oidc.TestClientSecret}, tp.ConfigOptions()...)
	require.NoError(err)
	p, err := oidc.NewProvider(cfg)
	require.NoError(err)
	t.Cleanup(p.Done)

	sealer, err := seal.NewSealer(testSecret, seal.WithKeyCache(seal.NewKeyCache()))
	require.NoError(err)

	clock := clockwork.NewFakeClockAt(time.Now())
	opts := append([]Option{
		WithClock(clock),
		WithLogger(hclog.New(&hclog.LoggerOptions{Name: t.Name(), Level: hclog.Debug})),
		WithPostLogoutRedirect(testAppURL + "/"),
	}, opt...)
	m, err := NewManager(p, sealer, opts...)
	require.NoError(err)
	return &testEnv{tp: tp, provider: p, sealer: sealer, clock: clock, m: m}
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func testRequest(method, target string, cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return r
}

// responseCookie returns the named cookie set by the response, or nil.
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func assertCleared(t *testing.T, rec *httptest.ResponseRecorder, names ...string) {
	t.Helper()
	for _, name := range names {
		c := responseCookie(rec, name)
		if assert.NotNil(t, c, "%s is not cleared", name) {
			assert.Empty(t, c.Value)
			assert.Equal(t, -1, c.MaxAge)
		}
	}
}

// testLogin starts a sign-in and returns the pkce cookie and the authorize
// url.
func testLogin(t *testing.T, env *testEnv, target string) (*http.Cookie, string) {
	t.Helper()
	require := require.New(t)
	rec := serve(env.m.LoginHandler(), testRequest(http.MethodGet, target))
	require.Equal(http.StatusFound, rec.Code)
	pkce := responseCookie(rec, PKCECookieName)
	require.NotNil(pkce)
	return pkce, rec.Header().Get("Location")
}

// testAuthorize follows the authorize url and returns the callback url the
// provider redirects to.
func testAuthorize(t *testing.T, env *testEnv, authURL string) string {
	t.Helper()
	require := require.New(t)
	resp, err := env.tp.HttpClient().Get(authURL)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	require.True(strings.HasPrefix(loc, oidc.TestRedirectURL+"?"), loc)
	return loc
}

// testSignIn runs a complete sign-in and returns the callback response.
func testSignIn(t *testing.T, env *testEnv) *httptest.ResponseRecorder {
	t.Helper()
	pkce, authURL := testLogin(t, env, testLoginURL)
	callback := testAuthorize(t, env, authURL)
	rec := serve(env.m.CallbackHandler(), testRequest(http.MethodGet, callback, pkce))
	require.Equal(t, http.StatusFound, rec.Code)
	require.NotNil(t, responseCookie(rec, UserCookieName))
	return rec
}

func TestNewManager(t *testing.T) {
	t.Parallel()
	env := testSetup(t)

	tests := []struct {
		name     string
		provider *oidc.Provider
		sealer   *seal.Sealer
		opt      []Option
		wantErr  error
	}{
		{name: "valid", provider: env.provider, sealer: env.sealer},
		{name: "base-url", provider: env.provider, sealer: env.sealer, opt: []Option{WithBaseURL("https://www.example.com")}},
		{name: "nil-provider", sealer: env.sealer, wantErr: ErrNilParameter},
		{name: "nil-sealer", provider: env.provider, wantErr: ErrNilParameter},
		{name: "zero-ttl", provider: env.provider, sealer: env.sealer, opt: []Option{WithSessionTTL(0)}, wantErr: ErrInvalidParameter},
		{name: "relative-error-path", provider: env.provider, sealer: env.sealer, opt: []Option{WithErrorPath("error")}, wantErr: ErrInvalidParameter},
		{name: "empty-error-path", provider: env.provider, sealer: env.sealer, opt: []Option{WithErrorPath("")}, wantErr: ErrInvalidParameter},
		{name: "bad-base-url", provider: env.provider, sealer: env.sealer, opt: []Option{WithBaseURL("/just/a/path")}, wantErr: ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			m, err := NewManager(tt.provider, tt.sealer, tt.opt...)
			if tt.wantErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantErr)
				assert.Equal(errkind.Configuration, errkind.Of(err))
				assert.Nil(m)
				return
			}
			require.NoError(err)
			assert.NotNil(m)
		})
	}
}

func TestManager_LoginHandler(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	env := testSetup(t)

	pkce, authURL := testLogin(t, env, testLoginURL+"?returnTo=%2Fdashboard%3Ftab%3D1&login_hint=alice%40example.com")
	assert.True(pkce.HttpOnly)
	assert.True(pkce.Secure)
	assert.Equal(http.SameSiteLaxMode, pkce.SameSite)
	assert.Equal("/", pkce.Path)
	assert.Equal(int(DefaultPKCECookieTTL/time.Second), pkce.MaxAge)

	u, err := url.Parse(authURL)
	require.NoError(err)
	assert.True(strings.HasPrefix(authURL, env.tp.Addr()+"/"+oidc.TestTenantID+"/oauth2/v2.0/authorize"))
	q := u.Query()
	assert.Equal(oidc.TestClientID, q.Get("client_id"))
	assert.Equal("S256", q.Get("code_challenge_method"))
	assert.Equal("alice@example.com", q.Get("login_hint"))
	assert.Empty(q.Get("prompt"))

	var fs oidc.FlowState
	require.NoError(env.sealer.Unseal(pkce.Value, &fs))
	assert.Equal(q.Get("state"), fs.State)
	assert.Equal(q.Get("nonce"), fs.Nonce)
	assert.Equal("/dashboard?tab=1", fs.ReturnTo)
	assert.WithinDuration(env.clock.Now().Add(oidc.DefaultFlowStateTTL), fs.ExpiresAt, 0)
	assert.NotContains(authURL, fs.Verifier)

	t.Run("insecure-cookies", func(t *testing.T) {
		env := testSetup(t, WithInsecureCookies(), WithCookieDomain("example.com"))
		pkce, _ := testLogin(t, env, testLoginURL)
		assert.False(pkce.Secure)
		assert.True(pkce.HttpOnly)
		assert.Equal("example.com", pkce.Domain)
	})

	t.Run("unsafe-return-url", func(t *testing.T) {
		for _, returnTo := range []string{"https://evil.example.com/", "//evil.example.com", "javascript:alert(1)"} {
			target := testLoginURL + "?" + url.Values{"returnTo": {returnTo}}.Encode()
			rec := serve(env.m.LoginHandler(), testRequest(http.MethodGet, target))
			assert.Equal(http.StatusFound, rec.Code, returnTo)
			assert.Equal(DefaultErrorPath+"?error=invalid_return_url", rec.Header().Get("Location"), returnTo)
			assert.Nil(responseCookie(rec, PKCECookieName), returnTo)
		}
	})
}

// TestManager_SignIn walks a session through sign-in, session lookup,
// refresh and logout.
func TestManager_SignIn(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	env := testSetup(t)

	pkce, authURL := testLogin(t, env, testLoginURL+"?returnTo=%2Fdashboard%3Ftab%3D1")
	callback := testAuthorize(t, env, authURL)

	rec := serve(env.m.CallbackHandler(), testRequest(http.MethodGet, callback, pkce))
	require.Equal(http.StatusFound, rec.Code)
	assert.Equal("/dashboard?tab=1", rec.Header().Get("Location"))
	assert.Equal("no-store", rec.Header().Get("Cache-Control"))
	assertCleared(t, rec, PKCECookieName)

	user := responseCookie(rec, UserCookieName)
	refresh := responseCookie(rec, RefreshCookieName)
	require.NotNil(user)
	require.NotNil(refresh)
	for _, c := range []*http.Cookie{user, refresh} {
		assert.True(c.HttpOnly)
		assert.True(c.Secure)
		assert.Equal(http.SameSiteLaxMode, c.SameSite)
		assert.Equal(int(DefaultSessionTTL/time.Second), c.MaxAge)
	}
	var rs refreshState
	require.NoError(env.sealer.Unseal(refresh.Value, &rs))
	assert.NotEmpty(rs.RefreshToken)
	assert.WithinDuration(env.clock.Now().Add(DefaultSessionTTL), rs.ExpiresAt, 0)
	assert.Equal(1, env.tp.TokenRequestCount(oidc.GrantTypeAuthorizationCode))

	// codes are single use
	replay := serve(env.m.CallbackHandler(), testRequest(http.MethodGet, callback, pkce))
	assert.Equal(DefaultErrorPath+"?error=token_exchange_failed", replay.Header().Get("Location"))

	rec = serve(env.m.SessionHandler(), testRequest(http.MethodGet, testAppURL+"/auth/session", user))
	require.Equal(http.StatusOK, rec.Code)
	var claims oidc.UserClaims
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &claims))
	assert.Equal(oidc.TestSubject, claims.Subject)
	assert.Equal(oidc.TestTenantID, claims.TenantID)
	assert.Equal(oidc.TestObjectID, claims.ObjectID)
	assert.Equal("alice@example.com", claims.Email)
	assert.Equal(env.tp.Issuer(), claims.Issuer)

	rec = serve(env.m.RefreshHandler(), testRequest(http.MethodPost, testAppURL+"/auth/refresh", refresh))
	require.Equal(http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal("application/json", rec.Header().Get("Content-Type"))
	var tr TokenResponse
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.NotEmpty(tr.AccessToken)
	assert.Equal("Bearer", tr.TokenType)
	assert.Greater(tr.ExpiresAt, time.Now().Unix())

	rotated := responseCookie(rec, RefreshCookieName)
	require.NotNil(rotated)
	assert.NotEqual(refresh.Value, rotated.Value)
	var next refreshState
	require.NoError(env.sealer.Unseal(rotated.Value, &next))
	assert.NotEqual(rs.RefreshToken, next.RefreshToken)

	// the provider rotated the refresh token, so the old cookie is dead
	rec = serve(env.m.RefreshHandler(), testRequest(http.MethodPost, testAppURL+"/auth/refresh", refresh))
	assert.Equal(http.StatusUnauthorized, rec.Code)
	assertCleared(t, rec, RefreshCookieName, UserCookieName)

	rec = serve(env.m.RefreshHandler(), testRequest(http.MethodGet, testAppURL+"/auth/refresh", rotated))
	assert.Equal(http.StatusOK, rec.Code)

	rec = serve(env.m.LogoutHandler(), testRequest(http.MethodGet, testAppURL+"/auth/logout", user, rotated))
	require.Equal(http.StatusFound, rec.Code)
	assertCleared(t, rec, PKCECookieName, RefreshCookieName, UserCookieName)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(err)
	assert.Equal("/"+oidc.TestTenantID+"/oauth2/v2.0/logout", loc.Path)
	assert.Equal(testAppURL+"/", loc.Query().Get("post_logout_redirect_uri"))
}

func TestManager_CallbackHandler_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		// setup runs before sign-in starts
		setup func(env *testEnv)
		// modify may change the callback url and pkce cookie
		modify   func(t *testing.T, env *testEnv, callback string, pkce *http.Cookie) (string, *http.Cookie)
		wantCode string
		// wantExchange is whether the code is redeemed
		wantExchange bool
	}{
		{
			name: "state-mismatch",
			modify: func(t *testing.T, _ *testEnv, callback string, pkce *http.Cookie) (string, *http.Cookie) {
				u, err := url.Parse(callback)
				require.NoError(t, err)
				q := u.Query()
				q.Set("state", "st_tampered")
				u.RawQuery = q.Encode()
				return u.String(), pkce
			},
			wantCode: "invalid_state",
		},
		{
			name: "missing-state",
			modify: func(t *testing.T, _ *testEnv, callback string, pkce *http.Cookie) (string, *http.Cookie) {
				u, err := url.Parse(callback)
				require.NoError(t, err)
				q := u.Query()
				q.Del("state")
				u.RawQuery = q.Encode()
				return u.String(), pkce
			},
			wantCode: "invalid_state",
		},
		{
			name: "missing-pkce-cookie",
			modify: func(_ *testing.T, _ *testEnv, callback string, _ *http.Cookie) (string, *http.Cookie) {
				return callback, nil
			},
			wantCode: "invalid_state",
		},
		{
			name: "tampered-pkce-cookie",
			modify: func(_ *testing.T, _ *testEnv, callback string, pkce *http.Cookie) (string, *http.Cookie) {
				v := []byte(pkce.Value)
				i := len(v) / 2
				if v[i] == 'A' {
					v[i] = 'B'
				} else {
					v[i] = 'A'
				}
				return callback, &http.Cookie{Name: pkce.Name, Value: string(v)}
			},
			wantCode: "session_error",
		},
		{
			name: "other-attempts-cookie",
			modify: func(t *testing.T, env *testEnv, callback string, _ *http.Cookie) (string, *http.Cookie) {
				other, _ := testLogin(t, env, testLoginURL)
				return callback, other
			},
			wantCode: "invalid_state",
		},
		{
			name: "expired-attempt",
			modify: func(_ *testing.T, env *testEnv, callback string, pkce *http.Cookie) (string, *http.Cookie) {
				env.clock.Advance(DefaultPKCECookieTTL + time.Minute)
				return callback, pkce
			},
			wantCode: "invalid_state",
		},
		{
			name: "provider-error",
			setup: func(env *testEnv) {
				env.tp.SetAuthError("access_denied", "the user <script>cancelled</script>")
			},
			wantCode: "token_exchange_failed",
		},
		{
			name: "code-rejected",
			modify: func(_ *testing.T, env *testEnv, callback string, pkce *http.Cookie) (string, *http.Cookie) {
				env.tp.SetTokenError(http.StatusBadRequest, "invalid_grant", "AADSTS70008: the code has expired")
				return callback, pkce
			},
			wantCode:     "token_exchange_failed",
			wantExchange: true,
		},
		{
			name: "missing-id-token",
			setup: func(env *testEnv) {
				env.tp.OmitIDTokens()
			},
			wantCode:     "token_exchange_failed",
			wantExchange: true,
		},
		{
			name: "id-token-for-another-client",
			setup: func(env *testEnv) {
				env.tp.SetCustomAudience("another-client")
			},
			wantCode:     "invalid_token",
			wantExchange: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			env := testSetup(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			pkce, authURL := testLogin(t, env, testLoginURL+"?returnTo=%2Fdashboard")
			callback := testAuthorize(t, env, authURL)
			if tt.modify != nil {
				callback, pkce = tt.modify(t, env, callback, pkce)
			}
			var cookies []*http.Cookie
			if pkce != nil {
				cookies = append(cookies, pkce)
			}

			rec := serve(env.m.CallbackHandler(), testRequest(http.MethodGet, callback, cookies...))
			require.Equal(http.StatusFound, rec.Code)
			assert.Equal(DefaultErrorPath+"?error="+tt.wantCode, rec.Header().Get("Location"))
			assert.NotContains(rec.Body.String(), "script")
			assertCleared(t, rec, PKCECookieName)
			assert.Nil(responseCookie(rec, UserCookieName))
			assert.Nil(responseCookie(rec, RefreshCookieName))
			if tt.wantExchange {
				assert.Equal(1, env.tp.TokenRequestCount(oidc.GrantTypeAuthorizationCode))
			} else {
				assert.Zero(env.tp.TokenRequestCount(oidc.GrantTypeAuthorizationCode))
			}
		})
	}

	t.Run("error-path", func(t *testing.T) {
		t.Parallel()
		env := testSetup(t, WithErrorPath("/signin-failed"))
		rec := serve(env.m.CallbackHandler(), testRequest(http.MethodGet, oidc.TestRedirectURL+"?code=c&state=s"))
		assert.Equal(t, "/signin-failed?error=invalid_state", rec.Header().Get("Location"))
	})
}

func TestManager_Refresh_Failures(t *testing.T) {
	t.Parallel()
	sealed := func(t *testing.T, env *testEnv, rs refreshState) *http.Cookie {
		v, err := env.sealer.Seal(rs)
		require.NoError(t, err)
		return &http.Cookie{Name: RefreshCookieName, Value: v}
	}

	tests := []struct {
		name        string
		cookie      func(t *testing.T, env *testEnv) *http.Cookie
		setup       func(env *testEnv)
		wantStatus  int
		wantCode    string
		wantCleared bool
		wantRequest bool
	}{
		{
			name: "expired-cookie",
			cookie: func(t *testing.T, env *testEnv) *http.Cookie {
				return sealed(t, env, refreshState{RefreshToken: "rt_old", ExpiresAt: env.clock.Now().Add(-time.Second)})
			},
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "not_authenticated",
			wantCleared: true,
		},
		{
			name: "expires-now",
			cookie: func(t *testing.T, env *testEnv) *http.Cookie {
				return sealed(t, env, refreshState{RefreshToken: "rt_old", ExpiresAt: env.clock.Now()})
			},
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "not_authenticated",
			wantCleared: true,
		},
		{
			name:        "missing-cookie",
			cookie:      func(*testing.T, *testEnv) *http.Cookie { return nil },
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "not_authenticated",
			wantCleared: true,
		},
		{
			name: "garbage-cookie",
			cookie: func(*testing.T, *testEnv) *http.Cookie {
				return &http.Cookie{Name: RefreshCookieName, Value: "garbage"}
			},
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "not_authenticated",
			wantCleared: true,
		},
		{
			name: "empty-token",
			cookie: func(t *testing.T, env *testEnv) *http.Cookie {
				return sealed(t, env, refreshState{ExpiresAt: env.clock.Now().Add(time.Hour)})
			},
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "not_authenticated",
			wantCleared: true,
		},
		{
			name: "revoked",
			cookie: func(t *testing.T, env *testEnv) *http.Cookie {
				return sealed(t, env, refreshState{RefreshToken: "rt_unknown", ExpiresAt: env.clock.Now().Add(time.Hour)})
			},
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "not_authenticated",
			wantCleared: true,
			wantRequest: true,
		},
		{
			name: "provider-unavailable",
			cookie: func(t *testing.T, env *testEnv) *http.Cookie {
				return sealed(t, env, refreshState{RefreshToken: "rt_unknown", ExpiresAt: env.clock.Now().Add(time.Hour)})
			},
			setup: func(env *testEnv) {
				env.tp.SetTokenError(http.StatusInternalServerError, "server_error", "AADSTS50000: try again")
			},
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "token_exchange_failed",
			wantRequest: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			env := testSetup(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			var cookies []*http.Cookie
			if c := tt.cookie(t, env); c != nil {
				cookies = append(cookies, c)
			}

			rec := serve(env.m.RefreshHandler(), testRequest(http.MethodPost, testAppURL+"/auth/refresh", cookies...))
			require.Equal(tt.wantStatus, rec.Code)
			var er ErrorResponse
			require.NoError(json.Unmarshal(rec.Body.Bytes(), &er))
			assert.Equal(tt.wantCode, er.Error)
			assert.NotContains(rec.Body.String(), "AADSTS")
			assert.NotContains(rec.Body.String(), "access_token")
			if tt.wantCleared {
				assertCleared(t, rec, PKCECookieName, RefreshCookieName, UserCookieName)
			} else {
				assert.Empty(rec.Result().Cookies())
			}
			if tt.wantRequest {
				assert.Equal(1, env.tp.TokenRequestCount(oidc.GrantTypeRefreshToken))
			} else {
				assert.Zero(env.tp.TokenRequestCount(oidc.GrantTypeRefreshToken))
			}
		})
	}

	t.Run("method", func(t *testing.T) {
		t.Parallel()
		env := testSetup(t)
		rec := serve(env.m.RefreshHandler(), testRequest(http.MethodDelete, testAppURL+"/auth/refresh"))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
	})

	t.Run("no-rotation", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		env := testSetup(t)
		refresh := responseCookie(testSignIn(t, env), RefreshCookieName)
		require.NotNil(refresh)
		env.tp.OmitRefreshTokens()

		w := httptest.NewRecorder()
		res, err := env.m.Refresh(context.Background(), w,
			testRequest(http.MethodPost, testAppURL+"/auth/refresh", refresh))
		require.NoError(err)
		assert.NotEmpty(res.AccessToken)
		// the cookie is kept as is
		assert.Empty(w.Result().Cookies())
	})
}

func TestManager_SessionHandler(t *testing.T) {
	t.Parallel()
	env := testSetup(t)
	user := responseCookie(testSignIn(t, env), UserCookieName)

	tests := []struct {
		name       string
		cookies    []*http.Cookie
		wantStatus int
	}{
		{name: "signed-in", cookies: []*http.Cookie{user}, wantStatus: http.StatusOK},
		{name: "no-cookie", wantStatus: http.StatusUnauthorized},
		{name: "garbage", cookies: []*http.Cookie{{Name: UserCookieName, Value: "garbage"}}, wantStatus: http.StatusUnauthorized},
		{name: "wrong-cookie", cookies: []*http.Cookie{{Name: RefreshCookieName, Value: user.Value}}, wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			rec := serve(env.m.SessionHandler(), testRequest(http.MethodGet, testAppURL+"/auth/session", tt.cookies...))
			assert.Equal(tt.wantStatus, rec.Code)
			assert.Equal("no-store", rec.Header().Get("Cache-Control"))
			if tt.wantStatus != http.StatusOK {
				assert.JSONEq(`{"error":"not_authenticated","error_description":"`+
					errkind.NotAuthenticated.Suggestion().Message+`"}`, rec.Body.String())
				return
			}
			assert.Contains(rec.Body.String(), `"sub":"`+oidc.TestSubject+`"`)
		})
	}

	t.Run("user", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		claims, err := env.m.User(testRequest(http.MethodGet, "/", user))
		require.NoError(err)
		assert.Equal(oidc.TestSubject, claims.Subject)

		_, err = env.m.User(testRequest(http.MethodGet, "/"))
		assert.ErrorIs(err, ErrNotAuthenticated)
		assert.Equal(errkind.NotAuthenticated, errkind.Of(err))
	})
}

func TestManager_LogoutHandler(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	env := testSetup(t, WithPostLogoutRedirect(""))

	rec := serve(env.m.LogoutHandler(), testRequest(http.MethodGet, testAppURL+"/auth/logout"))
	require.Equal(http.StatusFound, rec.Code)
	assertCleared(t, rec, PKCECookieName, RefreshCookieName, UserCookieName)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(err)
	assert.Empty(loc.Query().Get("post_logout_redirect_uri"))

	// an unusable redirect still signs the user out locally
	env = testSetup(t, WithPostLogoutRedirect("javascript:alert(1)"))
	rec = serve(env.m.LogoutHandler(), testRequest(http.MethodGet, testAppURL+"/auth/logout"))
	assert.Equal("/", rec.Header().Get("Location"))
	assertCleared(t, rec, RefreshCookieName, UserCookieName)
}
