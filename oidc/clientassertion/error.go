// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package clientassertion

import "errors"

var (
	ErrMissingClientID = errors.New("missing client ID")
	ErrMissingTokenURL = errors.New("missing token url")
	ErrNilCertificate  = errors.New("nil certificate")
	ErrInvalidLifetime = errors.New("lifetime must be greater than zero")
	ErrCreatingSigner  = errors.New("error creating jwt signer")

	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrNilPrivateKey        = errors.New("nil private key")
	ErrWeakKey              = errors.New("rsa key is too small")
)
