// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloud

import (
	"fmt"
	"regexp"

	"golang.org/x/text/cases"
)

// graphHostRe finds Microsoft Graph hostnames of any cloud inside a folded
// scope string.
var graphHostRe = regexp.MustCompile(`(?:dod-)?graph\.microsoft\.(?:com|us)`)

// ValidateScopes rejects scopes that embed a Microsoft Graph hostname of a
// different cloud than c, e.g. https://graph.microsoft.com/User.Read while
// configured for GovHigh. Matching is case-insensitive. An empty list is
// valid.
func ValidateScopes(scopes []string, c Cloud) error {
	const op = "cloud.ValidateScopes"
	if len(scopes) == 0 {
		return nil
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fold := cases.Fold()
	for _, s := range scopes {
		for _, host := range graphHostRe.FindAllString(fold.String(s), -1) {
			if host == c.GraphHost() {
				continue
			}
			return fmt.Errorf(
				"%s: scope %q requests Microsoft Graph at %q but cloud %q uses %q; requesting another cloud's Graph endpoint is not allowed: %w",
				op, s, host, c, c.GraphHost(), ErrCrossCloudScope,
			)
		}
	}
	return nil
}
