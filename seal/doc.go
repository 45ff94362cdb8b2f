// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package seal provides the authenticated encryption envelope used to store
// session material in cookies.
//
// An envelope is base64url(iv[12] || tag[16] || ciphertext) under AES-256-GCM
// with a key derived from a shared secret via PBKDF2-SHA256. The layout is a
// byte level contract: any implementation with the same secret, salt and
// iteration count can open it.
//
// Unseal fails closed. A wrong secret, a modified or truncated envelope, or a
// malformed payload all return ErrDecryptionFailed and leave the output
// untouched.
//
//	s, err := seal.NewSealer(secret, seal.WithKeyCache(seal.NewKeyCache()))
//	if err != nil {
//		// handle error
//	}
//	sealed, err := s.Seal(payload)
//	...
//	var got Payload
//	if err := s.Unseal(sealed, &got); err != nil {
//		// treat as unauthenticated
//	}
package seal
