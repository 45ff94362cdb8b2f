// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloud

import (
	"fmt"
	"strings"
)

// Cloud selects one of the Entra ID sovereign clouds.
type Cloud string

const (
	Commercial Cloud = "commercial"
	GovHigh    Cloud = "gov-high"
	DoD        Cloud = "dod"
)

// hosts are the bit-exact hostnames for a cloud.
type hosts struct {
	login string
	graph string
	sts   string
}

var hostTable = map[Cloud]hosts{
	Commercial: {
		login: "login.microsoftonline.com",
		graph: "graph.microsoft.com",
		sts:   "sts.windows.net",
	},
	GovHigh: {
		login: "login.microsoftonline.us",
		graph: "graph.microsoft.us",
		sts:   "sts.usgovcloudapi.net",
	},
	DoD: {
		login: "login.microsoftonline.us",
		graph: "dod-graph.microsoft.us",
		sts:   "sts.usgovcloudapi.net",
	},
}

// Clouds returns every supported cloud.
func Clouds() []Cloud {
	return []Cloud{Commercial, GovHigh, DoD}
}

// ParseCloud parses a cloud selector. Besides the canonical names it accepts
// the common aliases used in Azure tooling.
func ParseCloud(s string) (Cloud, error) {
	const op = "cloud.ParseCloud"
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "commercial", "public", "azurecloud", "azurepubliccloud":
		return Commercial, nil
	case "gov-high", "govhigh", "gcc-high", "usgov", "azureusgovernment":
		return GovHigh, nil
	case "dod", "usgov-dod", "azureusgovernmentdod":
		return DoD, nil
	default:
		return "", fmt.Errorf("%s: %q is not one of %v: %w", op, s, Clouds(), ErrInvalidCloud)
	}
}

// Validate returns an error unless c is a supported cloud.
func (c Cloud) Validate() error {
	const op = "cloud.(Cloud).Validate"
	if _, ok := hostTable[c]; !ok {
		return fmt.Errorf("%s: %q is not one of %v: %w", op, string(c), Clouds(), ErrInvalidCloud)
	}
	return nil
}

// IsGovernment is true for the US government clouds.
func (c Cloud) IsGovernment() bool {
	return c == GovHigh || c == DoD
}

// LoginHost returns the cloud's authority hostname.
func (c Cloud) LoginHost() string { return hostTable[c].login }

// GraphHost returns the cloud's Microsoft Graph hostname.
func (c Cloud) GraphHost() string { return hostTable[c].graph }

// STSHost returns the hostname used in the cloud's v1 token issuers.
func (c Cloud) STSHost() string { return hostTable[c].sts }

func (c Cloud) String() string { return string(c) }
