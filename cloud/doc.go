// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package cloud maps an Entra ID sovereign cloud and tenant to the identity
// provider's endpoints, and guards against tokens and scopes crossing cloud
// or tenant boundaries.
//
// Exactly one Cloud is configured per process. Endpoints are a pure function
// of (cloud, tenant) and are recomputed per call:
//
//	ep, err := cloud.ResolveEndpoints(cloud.GovHigh, tenantID)
//	if err != nil {
//		// handle error
//	}
//	fmt.Println(ep.TokenURL) // https://login.microsoftonline.us/<tenant>/oauth2/v2.0/token
//
// ValidateIssuer rejects a token minted for another tenant or another cloud,
// even when the tenant GUIDs coincide.
package cloud
