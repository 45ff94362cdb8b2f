// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloud

import (
	"errors"
	"testing"

	"github.com/hashicorp/cap-entra/sdk/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTenant = "72f988bf-86f1-41af-91ab-2d7cd011db47"

func TestParseCloud(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    Cloud
		wantErr bool
	}{
		{in: "commercial", want: Commercial},
		{in: " AzureCloud ", want: Commercial},
		{in: "gov-high", want: GovHigh},
		{in: "USGov", want: GovHigh},
		{in: "dod", want: DoD},
		{in: "AzureUSGovernmentDoD", want: DoD},
		{in: "china", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := ParseCloud(tt.in)
			if tt.wantErr {
				require.Error(err)
				assert.True(errors.Is(err, ErrInvalidCloud))
				assert.Equal(errkind.Configuration, errkind.Of(err))
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestResolveEndpoints(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		cloud     Cloud
		tenant    string
		opts      []Option
		want      Endpoints
		wantIsErr error
	}{
		{
			name:   "commercial",
			cloud:  Commercial,
			tenant: testTenant,
			want: Endpoints{
				AuthorizeURL: "https://login.microsoftonline.com/" + testTenant + "/oauth2/v2.0/authorize",
				TokenURL:     "https://login.microsoftonline.com/" + testTenant + "/oauth2/v2.0/token",
				LogoutURL:    "https://login.microsoftonline.com/" + testTenant + "/oauth2/v2.0/logout",
				JWKSURL:      "https://login.microsoftonline.com/" + testTenant + "/discovery/v2.0/keys",
				GraphURL:     "https://graph.microsoft.com/v1.0",
				Issuer:       "https://login.microsoftonline.com/" + testTenant + "/v2.0",
			},
		},
		{
			name:   "gov-high",
			cloud:  GovHigh,
			tenant: testTenant,
			want: Endpoints{
				AuthorizeURL: "https://login.microsoftonline.us/" + testTenant + "/oauth2/v2.0/authorize",
				TokenURL:     "https://login.microsoftonline.us/" + testTenant + "/oauth2/v2.0/token",
				LogoutURL:    "https://login.microsoftonline.us/" + testTenant + "/oauth2/v2.0/logout",
				JWKSURL:      "https://login.microsoftonline.us/" + testTenant + "/discovery/v2.0/keys",
				GraphURL:     "https://graph.microsoft.us/v1.0",
				Issuer:       "https://login.microsoftonline.us/" + testTenant + "/v2.0",
			},
		},
		{
			name:   "dod",
			cloud:  DoD,
			tenant: testTenant,
			want: Endpoints{
				AuthorizeURL: "https://login.microsoftonline.us/" + testTenant + "/oauth2/v2.0/authorize",
				TokenURL:     "https://login.microsoftonline.us/" + testTenant + "/oauth2/v2.0/token",
				LogoutURL:    "https://login.microsoftonline.us/" + testTenant + "/oauth2/v2.0/logout",
				JWKSURL:      "https://login.microsoftonline.us/" + testTenant + "/discovery/v2.0/keys",
				GraphURL:     "https://dod-graph.microsoft.us/v1.0",
				Issuer:       "https://login.microsoftonline.us/" + testTenant + "/v2.0",
			},
		},
		{
			name:   "authority-host",
			cloud:  Commercial,
			tenant: "contoso.onmicrosoft.com",
			opts:   []Option{WithAuthorityHost("https://127.0.0.1:8443/")},
			want: Endpoints{
				AuthorizeURL: "https://127.0.0.1:8443/contoso.onmicrosoft.com/oauth2/v2.0/authorize",
				TokenURL:     "https://127.0.0.1:8443/contoso.onmicrosoft.com/oauth2/v2.0/token",
				LogoutURL:    "https://127.0.0.1:8443/contoso.onmicrosoft.com/oauth2/v2.0/logout",
				JWKSURL:      "https://127.0.0.1:8443/contoso.onmicrosoft.com/discovery/v2.0/keys",
				GraphURL:     "https://graph.microsoft.com/v1.0",
				Issuer:       "https://login.microsoftonline.com/contoso.onmicrosoft.com/v2.0",
			},
		},
		{name: "bad-cloud", cloud: "moon", tenant: testTenant, wantIsErr: ErrInvalidCloud},
		{name: "empty-tenant", cloud: Commercial, wantIsErr: ErrInvalidTenant},
		{name: "tenant-with-path", cloud: Commercial, tenant: "a/../b", wantIsErr: ErrInvalidTenant},
		{name: "authority-with-path", cloud: Commercial, tenant: testTenant, opts: []Option{WithAuthorityHost("https://example.com/evil")}, wantIsErr: ErrInvalidURL},
		{name: "authority-not-absolute", cloud: Commercial, tenant: testTenant, opts: []Option{WithAuthorityHost("example.com")}, wantIsErr: ErrInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := ResolveEndpoints(tt.cloud, tt.tenant, tt.opts...)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted %q but got %q", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestValidateScopes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cloud   Cloud
		scopes  []string
		wantErr bool
	}{
		{name: "empty-commercial", cloud: Commercial},
		{name: "empty-gov", cloud: GovHigh, scopes: []string{}},
		{name: "commercial-ok", cloud: Commercial, scopes: []string{"openid", "https://graph.microsoft.com/User.Read"}},
		{name: "gov-ok", cloud: GovHigh, scopes: []string{"https://graph.microsoft.us/.default"}},
		{name: "dod-ok", cloud: DoD, scopes: []string{"https://dod-graph.microsoft.us/User.Read"}},
		{name: "non-graph", cloud: GovHigh, scopes: []string{"api://my-api/access_as_user", "User.Read"}},
		{name: "gov-commercial-graph", cloud: GovHigh, scopes: []string{"https://graph.microsoft.com/User.Read"}, wantErr: true},
		{name: "dod-commercial-graph", cloud: DoD, scopes: []string{"openid", "https://graph.microsoft.com/.default"}, wantErr: true},
		{name: "gov-commercial-graph-casing", cloud: GovHigh, scopes: []string{"HTTPS://GRAPH.Microsoft.COM/User.Read"}, wantErr: true},
		{name: "commercial-gov-graph", cloud: Commercial, scopes: []string{"https://graph.microsoft.us/User.Read"}, wantErr: true},
		{name: "commercial-dod-graph", cloud: Commercial, scopes: []string{"https://DOD-graph.microsoft.us/User.Read"}, wantErr: true},
		{name: "gov-dod-graph", cloud: GovHigh, scopes: []string{"https://dod-graph.microsoft.us/User.Read"}, wantErr: true},
		{name: "dod-gov-graph", cloud: DoD, scopes: []string{"https://graph.microsoft.us/User.Read"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			err := ValidateScopes(tt.scopes, tt.cloud)
			if tt.wantErr {
				require.Error(err)
				assert.True(errors.Is(err, ErrCrossCloudScope))
				assert.Contains(err.Error(), string(tt.cloud))
				return
			}
			require.NoError(err)
		})
	}
}

func TestValidateIssuer(t *testing.T) {
	t.Parallel()
	const otherTenant = "11111111-2222-3333-4444-555555555555"
	tests := []struct {
		name       string
		issuer     string
		tenant     string
		cloud      Cloud
		opts       []Option
		wantReason IssuerMismatch
		wantErr    bool
	}{
		{name: "commercial-v2", issuer: "https://login.microsoftonline.com/" + testTenant + "/v2.0", tenant: testTenant, cloud: Commercial},
		{name: "commercial-v1", issuer: "https://sts.windows.net/" + testTenant + "/", tenant: testTenant, cloud: Commercial},
		{name: "gov-v2", issuer: "https://login.microsoftonline.us/" + testTenant + "/v2.0", tenant: testTenant, cloud: GovHigh},
		{name: "gov-v1", issuer: "https://sts.usgovcloudapi.net/" + testTenant + "/", tenant: testTenant, cloud: GovHigh},
		{name: "dod-v2", issuer: "https://login.microsoftonline.us/" + testTenant + "/v2.0", tenant: testTenant, cloud: DoD},
		{
			name:   "v1-rejected-v2-only",
			issuer: "https://sts.windows.net/" + testTenant + "/", tenant: testTenant, cloud: Commercial,
			opts:    []Option{WithV2Only()},
			wantErr: true, wantReason: UnknownIssuer,
		},
		{
			name:   "same-tenant-wrong-cloud",
			issuer: "https://login.microsoftonline.com/" + testTenant + "/v2.0", tenant: testTenant, cloud: GovHigh,
			wantErr: true, wantReason: CloudMismatch,
		},
		{
			name:   "gov-token-against-commercial",
			issuer: "https://login.microsoftonline.us/" + testTenant + "/v2.0", tenant: testTenant, cloud: Commercial,
			wantErr: true, wantReason: CloudMismatch,
		},
		{
			name:   "same-cloud-wrong-tenant",
			issuer: "https://login.microsoftonline.com/" + otherTenant + "/v2.0", tenant: testTenant, cloud: Commercial,
			wantErr: true, wantReason: TenantMismatch,
		},
		{
			name:   "v1-wrong-tenant",
			issuer: "https://sts.windows.net/" + otherTenant + "/", tenant: testTenant, cloud: Commercial,
			wantErr: true, wantReason: TenantMismatch,
		},
		{
			name:   "foreign-issuer",
			issuer: "https://accounts.google.com", tenant: testTenant, cloud: Commercial,
			wantErr: true, wantReason: UnknownIssuer,
		},
		{
			name:   "garbage",
			issuer: "::not a url", tenant: testTenant, cloud: Commercial,
			wantErr: true, wantReason: UnknownIssuer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			err := ValidateIssuer(tt.issuer, tt.tenant, tt.cloud, tt.opts...)
			if !tt.wantErr {
				require.NoError(err)
				return
			}
			require.Error(err)
			assert.True(errors.Is(err, ErrTokenConfusion))
			assert.Equal(errkind.TokenValidation, errkind.Of(err))
			var ie *IssuerError
			require.True(errors.As(err, &ie))
			assert.Equal(tt.wantReason, ie.Reason)
			assert.Equal(tt.issuer, ie.Actual)
			assert.Contains(err.Error(), tt.issuer)
			assert.Contains(err.Error(), ExpectedIssuer(tt.cloud, tt.tenant, true))
			assert.Contains(err.Error(), tt.wantReason.String())
		})
	}
}

func TestValidateIssuer_TenantAReplayedAgainstTenantB(t *testing.T) {
	t.Parallel()
	const (
		tenantA = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
		tenantB = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
	)
	for _, c := range Clouds() {
		issuerA := ExpectedIssuer(c, tenantA, true)
		require.NoError(t, ValidateIssuer(issuerA, tenantA, c))
		err := ValidateIssuer(issuerA, tenantB, c)
		require.Error(t, err)
		var ie *IssuerError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, TenantMismatch, ie.Reason)
	}
}

func TestIsMultiTenant(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	for _, tenant := range []string{"common", "Organizations", "consumers"} {
		assert.Truef(IsMultiTenant(tenant), "%s", tenant)
	}
	for _, tenant := range []string{testTenant, "contoso.onmicrosoft.com", ""} {
		assert.Falsef(IsMultiTenant(tenant), "%s", tenant)
	}
}
