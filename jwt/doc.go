// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package jwt verifies Entra ID access tokens presented to an API.
//
// A KeySet verifies signatures, either against the tenant's JWKS endpoint
// (NewJSONWebKeySet) or against local public keys (NewStaticKeySet). A
// Validator then checks the claims: expiry with clock skew, audience, issuer
// and tenant (rejecting tokens minted for another tenant or cloud) and
// optionally the authorized party.
package jwt
