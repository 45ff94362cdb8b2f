// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloud

import (
	"fmt"
	"net/url"
	"strings"
)

// ExpectedIssuer returns the issuer of tokens minted for tenant in cloud c:
// https://<login-host>/<tenant>/v2.0 when v2 is true, otherwise the v1 form
// https://<sts-host>/<tenant>/.
func ExpectedIssuer(c Cloud, tenant string, v2 bool) string {
	if v2 {
		return "https://" + c.LoginHost() + "/" + tenant + "/v2.0"
	}
	return "https://" + c.STSHost() + "/" + tenant + "/"
}

// IssuerMismatch describes why an issuer was rejected.
type IssuerMismatch int

const (
	UnknownIssuer IssuerMismatch = iota
	CloudMismatch
	TenantMismatch
)

func (m IssuerMismatch) String() string {
	switch m {
	case CloudMismatch:
		return "cloud mismatch"
	case TenantMismatch:
		return "tenant mismatch"
	default:
		return "unknown issuer"
	}
}

// IssuerError is returned by ValidateIssuer. It wraps ErrTokenConfusion.
type IssuerError struct {
	Reason   IssuerMismatch
	Expected []string
	Actual   string
	Cloud    Cloud
	Tenant   string
}

func (e *IssuerError) Error() string {
	return fmt.Sprintf("token confusion (%s): issuer %q is not valid for tenant %q in cloud %q, expected one of %q",
		e.Reason, e.Actual, e.Tenant, e.Cloud, e.Expected)
}

func (e *IssuerError) Unwrap() error { return ErrTokenConfusion }

// issuerOptions is the set of available options for ValidateIssuer.
type issuerOptions struct {
	withV2Only bool
}

// WithV2Only rejects v1 (sts) issuers.
func WithV2Only() Option {
	return func(o interface{}) {
		if o, ok := o.(*issuerOptions); ok {
			o.withV2Only = true
		}
	}
}

// ValidateIssuer accepts only the v1 or v2 issuer of the configured tenant
// and cloud. It guards against a token minted for tenant A being replayed
// against tenant B's application, and a token from one sovereign cloud being
// replayed against another cloud even when the tenant GUID coincides.
//
// Supported options:
//   - WithV2Only
func ValidateIssuer(issuer, tenant string, c Cloud, opt ...Option) error {
	const op = "cloud.ValidateIssuer"
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := ValidateTenant(tenant); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	opts := issuerOptions{}
	ApplyOpts(&opts, opt...)

	expected := []string{ExpectedIssuer(c, tenant, true)}
	if !opts.withV2Only {
		expected = append(expected, ExpectedIssuer(c, tenant, false))
	}
	for _, e := range expected {
		if strings.EqualFold(issuer, e) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, &IssuerError{
		Reason:   classifyIssuer(issuer, tenant, c),
		Expected: expected,
		Actual:   issuer,
		Cloud:    c,
		Tenant:   tenant,
	})
}

func classifyIssuer(issuer, tenant string, c Cloud) IssuerMismatch {
	u, err := url.Parse(issuer)
	if err != nil || u.Host == "" {
		return UnknownIssuer
	}
	host := strings.ToLower(u.Host)
	if host == c.LoginHost() || host == c.STSHost() {
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segs) > 0 && !strings.EqualFold(segs[0], tenant) {
			return TenantMismatch
		}
		return UnknownIssuer
	}
	for _, other := range Clouds() {
		if host == other.LoginHost() || host == other.STSHost() {
			return CloudMismatch
		}
	}
	return UnknownIssuer
}
