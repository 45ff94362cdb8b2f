// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// ValidateReturnURL checks a post sign-in return location and returns it as
// a same origin path plus query. Empty input returns "/". Relative input is
// resolved against base, the application's own origin. Anything that could
// send the browser elsewhere is rejected with ErrInvalidReturnURL: non http(s)
// schemes, userinfo, protocol relative references, backslashes, control
// characters and origin changes. Interior spaces are percent encoded and the
// fragment is dropped.
func ValidateReturnURL(raw, base string) (string, error) {
	const op = "oidc.ValidateReturnURL"
	if raw == "" {
		return "/", nil
	}
	baseURL, err := url.Parse(base)
	if err != nil || (baseURL.Scheme != "http" && baseURL.Scheme != "https") || baseURL.Host == "" {
		return "", fmt.Errorf("%s: base %q is not an absolute http(s) url: %w", op, base, ErrInvalidParameter)
	}

	// browsers ignore or rewrite these, so they can hide a second origin.
	if strings.ContainsRune(raw, '\\') || strings.IndexFunc(raw, func(r rune) bool {
		return unicode.IsControl(r) || (unicode.IsSpace(r) && r != ' ')
	}) >= 0 {
		return "", fmt.Errorf("%s: contains backslash, control characters or non ascii whitespace: %w", op, ErrInvalidReturnURL)
	}
	if strings.TrimSpace(raw) != raw {
		return "", fmt.Errorf("%s: leading or trailing whitespace: %w", op, ErrInvalidReturnURL)
	}
	// interior spaces are encoded the way a browser would
	raw = strings.ReplaceAll(raw, " ", "%20")
	if strings.HasPrefix(raw, "//") {
		return "", fmt.Errorf("%s: protocol relative url: %w", op, ErrInvalidReturnURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidReturnURL)
	}
	if u.Scheme != "" {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
		default:
			return "", fmt.Errorf("%s: scheme %q is not allowed: %w", op, u.Scheme, ErrInvalidReturnURL)
		}
	}
	if u.User != nil {
		return "", fmt.Errorf("%s: userinfo is not allowed: %w", op, ErrInvalidReturnURL)
	}
	if u.Opaque != "" {
		return "", fmt.Errorf("%s: opaque url: %w", op, ErrInvalidReturnURL)
	}

	resolved := baseURL.ResolveReference(u)
	if !sameOrigin(resolved, baseURL) {
		return "", fmt.Errorf("%s: origin %s://%s differs from %s://%s: %w",
			op, resolved.Scheme, resolved.Host, baseURL.Scheme, baseURL.Host, ErrInvalidReturnURL)
	}

	path := resolved.EscapedPath()
	switch {
	case path == "":
		path = "/"
	case strings.HasPrefix(path, "//"):
		// dot segments can collapse into a protocol relative path
		return "", fmt.Errorf("%s: resolves to a protocol relative path: %w", op, ErrInvalidReturnURL)
	case !strings.HasPrefix(path, "/"):
		path = "/" + path
	}
	if resolved.RawQuery != "" {
		path += "?" + resolved.RawQuery
	}
	return path, nil
}

func sameOrigin(a, b *url.URL) bool {
	if !strings.EqualFold(a.Scheme, b.Scheme) {
		return false
	}
	if !strings.EqualFold(a.Hostname(), b.Hostname()) {
		return false
	}
	return effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	default:
		return "80"
	}
}
