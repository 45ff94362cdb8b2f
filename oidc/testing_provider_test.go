// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/cap-entra/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_StartTestProvider(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	assert.True(strings.HasPrefix(tp.Addr(), "https://127.0.0.1:"))
	assert.Contains(tp.CACert(), "BEGIN CERTIFICATE")
	assert.Equal("https://login.microsoftonline.com/"+TestTenantID+"/v2.0", tp.Issuer())

	resp, err := tp.HttpClient().Get(tp.JWKSURL())
	require.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
	var jwks jose.JSONWebKeySet
	require.NoError(json.NewDecoder(resp.Body).Decode(&jwks))
	require.Len(jwks.Keys, 1)
	assert.Equal(testKeyID, jwks.Keys[0].KeyID)

	unknown, err := tp.HttpClient().Get(tp.Addr() + "/other-tenant/discovery/v2.0/keys")
	require.NoError(err)
	defer unknown.Body.Close()
	assert.Equal(http.StatusNotFound, unknown.StatusCode)
}

func TestTestProvider_Authorize(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	p := testNewProvider(t, tp, ClientSecretAuth{Secret: TestClientSecret})

	t.Run("unregistered-redirect", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		q := url.Values{
			"client_id":     {TestClientID},
			"response_type": {"code"},
			"redirect_uri":  {"https://evil.example.com/cb"},
			"scope":         {"openid"},
			"state":         {"s"},
		}
		resp, err := tp.HttpClient().Get(p.Endpoints().AuthorizeURL + "?" + q.Encode())
		require.NoError(err)
		defer resp.Body.Close()
		assert.Equal(http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("missing-pkce", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		q := url.Values{
			"client_id":     {TestClientID},
			"response_type": {"code"},
			"redirect_uri":  {TestRedirectURL},
			"scope":         {"openid"},
			"state":         {"s"},
		}
		resp, err := tp.HttpClient().Get(p.Endpoints().AuthorizeURL + "?" + q.Encode())
		require.NoError(err)
		defer resp.Body.Close()
		require.Equal(http.StatusFound, resp.StatusCode)
		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(err)
		assert.Equal("invalid_request", loc.Query().Get("error"))
		assert.Equal("s", loc.Query().Get("state"))
	})
	t.Run("auth-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p := testNewProvider(t, tp, ClientSecretAuth{Secret: TestClientSecret})
		tp.SetAuthError("access_denied", "the user declined")
		fs, err := NewFlowState(DefaultFlowStateTTL)
		require.NoError(err)
		q := testAuthorize(t, tp, p, fs)
		assert.Equal("access_denied", q.Get("error"))
		assert.Equal("the user declined", q.Get("error_description"))
		assert.Equal(fs.State, q.Get("state"))
		assert.Empty(q.Get("code"))
	})
}

func TestTestProvider_IssueAccessToken(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	tp.SetTenant(cloud.GovHigh, "gov-tenant")

	raw := tp.IssueAccessToken(t, "api://my-api", map[string]interface{}{
		"scp":   "Files.Read",
		"roles": []string{"Admin"},
		"azp":   nil,
	})
	parsed, err := josejwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.RS256})
	require.NoError(err)
	claims := map[string]interface{}{}
	require.NoError(parsed.Claims(tp.SigningKey().Public(), &claims))
	assert.Equal("https://login.microsoftonline.us/gov-tenant/v2.0", claims["iss"])
	assert.Equal("api://my-api", claims["aud"])
	assert.Equal("gov-tenant", claims["tid"])
	assert.Equal("Files.Read", claims["scp"])
	assert.Equal([]interface{}{"Admin"}, claims["roles"])
	assert.NotContains(claims, "azp")
	assert.Equal(testKeyID, parsed.Headers[0].KeyID)
}

func TestTestProvider_OnBehalfOf(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	ctx := context.Background()
	tokenURL := tp.Addr() + "/" + TestTenantID + "/oauth2/v2.0/token"
	client := tp.HttpClient()
	assertion := tp.IssueAccessToken(t, TestClientID, nil)

	form := func(extra url.Values) url.Values {
		f := url.Values{
			"grant_type":          {GrantTypeJWTBearer},
			"requested_token_use": {"on_behalf_of"},
			"client_id":           {TestClientID},
			"client_secret":       {TestClientSecret},
			"assertion":           {assertion},
		}
		for k, v := range extra {
			f[k] = v
		}
		return f
	}

	t.Run("scope", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tk, err := RequestToken(ctx, client, tokenURL, form(url.Values{"scope": {"https://graph.microsoft.com/User.Read"}}), nil)
		require.NoError(err)
		parsed, err := josejwt.ParseSigned(tk.AccessToken, []jose.SignatureAlgorithm{jose.RS256})
		require.NoError(err)
		claims := map[string]interface{}{}
		require.NoError(parsed.Claims(tp.SigningKey().Public(), &claims))
		assert.Equal("https://graph.microsoft.com", claims["aud"])
		assert.Equal("User.Read", claims["scp"])
		assert.Equal(TestSubject, claims["sub"])
		assert.InDelta(time.Hour.Seconds(), float64(tk.ExpiresIn), 1)
	})
	t.Run("resource", func(t *testing.T) {
		tk, err := RequestToken(ctx, client, tokenURL, form(url.Values{"resource": {"api://downstream"}}), nil)
		require.NoError(t, err)
		assert.NotEmpty(t, tk.AccessToken)
	})
	t.Run("scope-and-resource", func(t *testing.T) {
		_, err := RequestToken(ctx, client, tokenURL, form(url.Values{"scope": {"a"}, "resource": {"b"}}), nil)
		assert.ErrorIs(t, err, ErrTokenExchange)
	})
	t.Run("bad-assertion", func(t *testing.T) {
		other := StartTestProvider(t)
		f := form(url.Values{"scope": {"User.Read"}})
		f.Set("assertion", other.IssueAccessToken(t, TestClientID, nil))
		_, err := RequestToken(ctx, client, tokenURL, f, nil)
		assert.ErrorIs(t, err, ErrTokenExchange)
	})
	t.Run("cae-required", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tokenURL := tp.Addr() + "/" + TestTenantID + "/oauth2/v2.0/token"
		tp.SetCAERequired(`{"access_token":{"acrs":{"essential":true,"value":"c1"}}}`)
		f := url.Values{
			"grant_type":          {GrantTypeJWTBearer},
			"requested_token_use": {"on_behalf_of"},
			"client_id":           {TestClientID},
			"client_secret":       {TestClientSecret},
			"assertion":           {tp.IssueAccessToken(t, TestClientID, nil)},
			"scope":               {"User.Read"},
		}
		_, err := RequestToken(ctx, tp.HttpClient(), tokenURL, f, nil)
		var tErr *TokenError
		require.ErrorAs(err, &tErr)
		assert.Equal("interaction_required", tErr.Code)
		assert.Contains(tErr.Claims, "acrs")

		f.Set("claims", tErr.Claims)
		_, err = RequestToken(ctx, tp.HttpClient(), tokenURL, f, nil)
		require.NoError(err)
		assert.Equal(2, tp.TokenRequestCount(GrantTypeJWTBearer))
	})
}
