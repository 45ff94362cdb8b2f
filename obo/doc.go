// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package obo implements the on-behalf-of flow for middle tier APIs: an
inbound access token is validated and exchanged at the Entra ID token
endpoint for a token scoped to a downstream API.

Exchanger

An Exchanger validates inbound assertions with a jwt.Validator, caches
downstream tokens in a TokenCache and authenticates with a client secret or a
certificate (private_key_jwt). Concurrent identical exchanges share one
request.

	ex, err := obo.NewExchanger(obo.Config{
		ClientID:   clientID,
		TenantID:   tenantID,
		Cloud:      cloud.Commercial,
		ClientAuth: oidc.ClientSecretAuth{Secret: secret},
		Scopes:     []string{"https://graph.microsoft.com/.default"},
	})
	if err != nil {
		// handle err
	}
	defer ex.Done()

	token, ok := jwt.ExtractBearerToken(r.Header.Get("Authorization"))
	if !ok {
		// handle missing token
	}
	res, err := ex.Exchange(ctx, obo.Request{Assertion: token})
	if err != nil {
		obo.WriteError(w, err, "")
		return
	}

Continuous access evaluation

When the token endpoint asks for additional claims, Exchange returns a
*CAERequiredError. It's not retried: the claims challenge is sent back to the
caller (WriteError writes the WWW-Authenticate header), which obtains a new
token and calls again; the new request carries the challenge in
Request.Claims. ParseCAEChallenge and BuildCAEChallengeHeader read and write
the header, and WithCAERetry retries other failures.

TokenCache

TokenCache is an LRU cache that never returns a token within its buffer
(DefaultBuffer) of expiry. It's safe to share between exchangers.
*/
package obo
