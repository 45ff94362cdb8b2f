// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloud

import "github.com/hashicorp/cap-entra/sdk/errkind"

var (
	ErrInvalidCloud    = errkind.New(errkind.Configuration, "invalid cloud")
	ErrInvalidTenant   = errkind.New(errkind.Configuration, "invalid tenant")
	ErrInvalidURL      = errkind.New(errkind.Configuration, "invalid url")
	ErrCrossCloudScope = errkind.New(errkind.Configuration, "scope targets another cloud")
	ErrTokenConfusion  = errkind.New(errkind.TokenValidation, "token confusion")
)
