// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package seal

import "github.com/hashicorp/cap-entra/sdk/errkind"

var (
	ErrInvalidSecret    = errkind.New(errkind.Configuration, "invalid sealing secret")
	ErrInvalidParameter = errkind.New(errkind.Configuration, "invalid parameter")
	ErrEncryptionFailed = errkind.New(errkind.CookieCrypto, "encryption failed")
	ErrSizeLimit        = errkind.New(errkind.CookieCrypto, "sealed envelope exceeds size limit")
	ErrDecryptionFailed = errkind.New(errkind.CookieCrypto, "decryption failed")
)
