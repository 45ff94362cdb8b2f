// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"strings"
	"time"
)

// DefaultExpiryBuffer is the buffer used by IsTokenExpiringSoon when none is
// given.
const DefaultExpiryBuffer = 300 * time.Second

// ExtractBearerToken returns the token of an "Authorization: Bearer <token>"
// header value. The scheme is case-insensitive and any run of whitespace may
// separate it from the token. It never fails; ok is false when the header
// isn't a single bearer token.
func ExtractBearerToken(header string) (token string, ok bool) {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", false
	}
	return fields[1], true
}

// IsTokenExpiringSoon reports whether the token expires within buffer of
// now. A non-positive buffer uses DefaultExpiryBuffer.
func IsTokenExpiringSoon(claims *AccessTokenClaims, buffer time.Duration) bool {
	return claims.ExpiresWithin(buffer, time.Now())
}

// ExpiresWithin reports whether the token expires within buffer of now. A
// non-positive buffer uses DefaultExpiryBuffer; nil claims are always
// expiring.
func (c *AccessTokenClaims) ExpiresWithin(buffer time.Duration, now time.Time) bool {
	if c == nil || c.Expiry.IsZero() {
		return true
	}
	if buffer <= 0 {
		buffer = DefaultExpiryBuffer
	}
	return !now.Add(buffer).Before(c.Expiry)
}
