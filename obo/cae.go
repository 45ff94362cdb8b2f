// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package obo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/cap-entra/oidc"
)

// DefaultMaxRetries is how many times WithCAERetry retries a failure that
// isn't a CAE condition.
const DefaultMaxRetries = 1

// CAEErrorCode is the error of a claims challenge.
const CAEErrorCode = "insufficient_claims"

// CAERequiredError is returned when the token endpoint asks for additional
// claims (continuous access evaluation). It isn't a terminal failure: the
// caller must obtain a new token that satisfies Claims and retry with
// Request.Claims set.
type CAERequiredError struct {
	// Claims is the claims challenge, a JSON document.
	Claims string

	Code          string
	Description   string
	SubError      string
	CorrelationID string

	// TokenError is the token endpoint's response.
	TokenError *oidc.TokenError
}

// Error satisfies the error interface.
func (e *CAERequiredError) Error() string {
	s := ErrCAERequired.Error()
	if e.Code != "" {
		s += ": " + e.Code
	}
	if e.SubError != "" {
		s += " (" + e.SubError + ")"
	}
	return s
}

// Unwrap returns ErrCAERequired.
func (e *CAERequiredError) Unwrap() error { return ErrCAERequired }

// IsCAEError reports whether err carries a CAE condition.
func IsCAEError(err error) bool {
	var ce *CAERequiredError
	return errors.As(err, &ce)
}

// ExtractClaimsFromError returns the claims challenge carried by err.
func ExtractClaimsFromError(err error) (string, bool) {
	var ce *CAERequiredError
	if !errors.As(err, &ce) || ce.Claims == "" {
		return "", false
	}
	return ce.Claims, true
}

// isCAEResponse reports whether a token error asks for more claims.
func isCAEResponse(te *oidc.TokenError) bool {
	switch {
	case te == nil:
		return false
	case te.Claims != "":
		return true
	case te.Code == "interaction_required", te.Code == CAEErrorCode, te.SubError == CAEErrorCode:
		return true
	default:
		return false
	}
}

// CAEChallenge is a parsed claims challenge from a WWW-Authenticate header.
type CAEChallenge struct {
	Realm string
	Error string

	// Claims is the claims parameter as sent, normally base64 encoded JSON.
	// See DecodeClaims.
	Claims string

	// Params holds every parameter of the challenge, keyed by lower case
	// name.
	Params map[string]string
}

// DecodeClaims returns the claims challenge as JSON. Claims that aren't
// base64 encoded are returned as is.
func (c *CAEChallenge) DecodeClaims() string {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(c.Claims); err == nil {
			return string(b)
		}
	}
	return c.Claims
}

// ParseCAEChallenge parses a WWW-Authenticate header value such as
//
//	Bearer realm="", error="insufficient_claims", claims="eyJhY2Nlc3NfdG9rZW4iOnt9fQ=="
//
// Quoted values may contain escaped quotes and commas. ok is false when the
// header isn't a Bearer challenge or has no claims parameter, since not
// every 401 is a claims challenge.
func ParseCAEChallenge(header string) (*CAEChallenge, bool) {
	header = strings.TrimSpace(header)
	scheme, rest, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return nil, false
	}
	params, ok := parseAuthParams(rest)
	if !ok {
		return nil, false
	}
	claims := params["claims"]
	if claims == "" {
		return nil, false
	}
	return &CAEChallenge{
		Realm:  params["realm"],
		Error:  params["error"],
		Claims: claims,
		Params: params,
	}, true
}

// parseAuthParams parses comma separated name=value pairs where a value is
// a token or a quoted string.
func parseAuthParams(s string) (map[string]string, bool) {
	params := map[string]string{}
	for {
		s = strings.TrimLeft(s, " \t,")
		if s == "" {
			return params, true
		}
		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return nil, false
		}
		name := strings.ToLower(strings.TrimSpace(s[:eq]))
		if name == "" || strings.ContainsAny(name, " \t\",") {
			return nil, false
		}
		s = strings.TrimLeft(s[eq+1:], " \t")

		var value string
		if strings.HasPrefix(s, `"`) {
			var b strings.Builder
			i, closed := 1, false
			for i < len(s) {
				ch := s[i]
				if ch == '\\' && i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if ch == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(ch)
				i++
			}
			if !closed {
				return nil, false
			}
			value, s = b.String(), s[i:]
		} else {
			end := strings.IndexByte(s, ',')
			if end < 0 {
				end = len(s)
			}
			value, s = strings.TrimSpace(s[:end]), s[end:]
		}
		if _, dup := params[name]; !dup {
			params[name] = value
		}
	}
}

// BuildCAEChallengeHeader formats a WWW-Authenticate claims challenge. The
// claims value is written as given; errCode defaults to
// insufficient_claims and an empty realm is omitted.
func BuildCAEChallengeHeader(claims, errCode, realm string) string {
	if errCode == "" {
		errCode = CAEErrorCode
	}
	var parts []string
	if realm != "" {
		parts = append(parts, fmt.Sprintf("realm=%s", quote(realm)))
	}
	parts = append(parts,
		fmt.Sprintf("error=%s", quote(errCode)),
		fmt.Sprintf("claims=%s", quote(claims)),
	)
	return "Bearer " + strings.Join(parts, ", ")
}

// EncodeClaims base64 encodes a JSON claims challenge for a
// WWW-Authenticate header.
func EncodeClaims(claims string) string {
	return base64.StdEncoding.EncodeToString([]byte(claims))
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// WithCAERetry runs fn and retries failures up to the max retries. A CAE
// condition is never retried, since only the original caller can obtain a
// token with the required claims: it's returned, or with
// WithThrowOnFailure(false) logged and replaced with the zero value. Retries
// stop when ctx is done.
//
// Supported options:
//   - WithMaxRetries
//   - WithThrowOnFailure
//   - WithLogger
func WithCAERetry[T any](ctx context.Context, fn func(context.Context) (T, error), opt ...Option) (T, error) {
	const op = "obo.WithCAERetry"
	var zero T
	if fn == nil {
		return zero, fmt.Errorf("%s: fn is nil: %w", op, ErrNilParameter)
	}
	opts := getRetryOpts(opt...)
	logger := opts.withLogger.Named("obo")

	var lastErr error
	for attempt := 0; attempt <= opts.withMaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%s: %w: %w", op, err, lastErr)
			}
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if IsCAEError(err) {
			if opts.withThrowOnFailure {
				return zero, err
			}
			claims, _ := ExtractClaimsFromError(err)
			logger.Warn("claims challenge not satisfied", "claims_len", len(claims), "error", err)
			return zero, nil
		}
		lastErr = err
		logger.Debug("operation failed", "attempt", attempt+1, "max_retries", opts.withMaxRetries, "error", err)
	}
	return zero, lastErr
}
