// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package oidc runs the OpenID Connect Authorization Code flow with PKCE
// against Microsoft Entra ID in the commercial, gov-high and dod clouds.
//
// Primary types provided by the package:
//
//   - Config: the relying party configuration (client id, tenant, cloud,
//     redirect url, client authentication and scopes). Use NewConfig or call
//     Validate before use; every problem is reported at once.
//   - ClientAuth: how the client authenticates at the token endpoint. One of
//     ClientSecretAuth, CertificateAuth (private_key_jwt) or PublicClient.
//   - FlowState: one sign-in attempt. It carries the PKCE verifier, the state
//     and the nonce, and is meant to be sealed into a short lived cookie and
//     consumed exactly once.
//   - Provider: builds authorization urls, exchanges codes, refreshes tokens
//     and verifies id_tokens against the tenant's signing keys.
//   - TestProvider: an in-process emulator of the Entra authorize, token and
//     keys endpoints for tests.
//
// ValidateState, ValidateNonce and ValidateReturnURL are the CSRF, replay and
// open-redirect guards of the callback leg. Their errors carry an
// errkind.Kind so callers can map them to a generic response without leaking
// detail.
package oidc
