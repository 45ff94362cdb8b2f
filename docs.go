// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// capentra (collection of authentication packages for Entra ID) provides a
// collection of related packages which enable sign-in with Microsoft Entra ID
// across its sovereign clouds, access token validation for APIs, and the
// on-behalf-of token exchange.
//
//   - cloud resolves the endpoints and issuers of each Entra cloud.
//   - oidc implements the authorization code flow with PKCE.
//   - jwt validates bearer access tokens.
//   - seal encrypts session data into cookie sized envelopes.
//   - session provides the browser sign-in http handlers.
//   - obo exchanges an incoming access token for a downstream one and caches
//     the result.
//
// Every error returned by these packages carries an errkind.Kind which maps
// to a generic, browser safe error code and HTTP status.
package capentra
