// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
)

const (
	// MaxEnvelopeSize is the hard per-cookie limit of browsers. Seal fails
	// rather than produce an envelope the browser would silently drop.
	MaxEnvelopeSize = 4096

	// DefaultIterations is the PBKDF2 iteration count.
	DefaultIterations = 100000

	// DefaultSalt is the static application salt. It is shared by every
	// deployment so envelopes stay interoperable; use WithSalt for a per
	// deployment salt.
	DefaultSalt = "cap-entra.seal.v1"

	// MinSecretLength is the minimum length of a sealing secret in bytes.
	MinSecretLength = 32

	keySize = 32
	ivSize  = 12
	tagSize = 16
)

var encoding = base64.RawURLEncoding

// Seal serializes data as JSON and encrypts it into a cookie safe envelope.
// Every call uses a fresh random iv, so sealing the same data twice yields
// different envelopes.
//
// Supported options:
//   - WithSalt
//   - WithIterations
//   - WithKeyCache
//   - WithMaxSize
func Seal(data any, secret string, opt ...Option) (string, error) {
	const op = "seal.Seal"
	opts := getOpts(opt...)
	if err := validate(secret, opts); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%s: unable to serialize data: %w: %w", op, ErrEncryptionFailed, err)
	}
	// gcm ciphertext is as long as the plaintext, so the final size is known
	// before encrypting.
	if n := encoding.EncodedLen(ivSize + tagSize + len(plaintext)); n > opts.withMaxSize {
		return "", sizeError(op, n, opts.withMaxSize)
	}

	aead, err := newAEAD(opts.key(secret))
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrEncryptionFailed, err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("%s: unable to generate iv: %w: %w", op, ErrEncryptionFailed, err)
	}
	// aead.Seal returns ciphertext||tag; the envelope stores iv||tag||ciphertext.
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	raw := make([]byte, 0, ivSize+tagSize+len(ct))
	raw = append(raw, iv...)
	raw = append(raw, tag...)
	raw = append(raw, ct...)

	return encoding.EncodeToString(raw), nil
}

// Unseal decrypts an envelope produced by Seal and unmarshals its payload
// into out, which must be a non-nil pointer. Any failure returns
// ErrDecryptionFailed and out is not modified.
//
// Supported options:
//   - WithSalt
//   - WithIterations
//   - WithKeyCache
//   - WithMaxSize
func Unseal(sealed, secret string, out any, opt ...Option) error {
	const op = "seal.Unseal"
	opts := getOpts(opt...)
	if err := validate(secret, opts); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rv := reflect.ValueOf(out)
	if out == nil || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%s: out must be a non-nil pointer: %w", op, ErrInvalidParameter)
	}
	if len(sealed) > opts.withMaxSize {
		return fmt.Errorf("%s: envelope is %d bytes: %w", op, len(sealed), ErrDecryptionFailed)
	}
	raw, err := encoding.DecodeString(sealed)
	if err != nil {
		return fmt.Errorf("%s: malformed envelope: %w", op, ErrDecryptionFailed)
	}
	if len(raw) < ivSize+tagSize {
		return fmt.Errorf("%s: envelope is truncated: %w", op, ErrDecryptionFailed)
	}
	iv, tag, ct := raw[:ivSize], raw[ivSize:ivSize+tagSize], raw[ivSize+tagSize:]

	aead, err := newAEAD(opts.key(secret))
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrDecryptionFailed)
	}
	sealedBox := make([]byte, 0, len(ct)+tagSize)
	sealedBox = append(sealedBox, ct...)
	sealedBox = append(sealedBox, tag...)
	plaintext, err := aead.Open(nil, iv, sealedBox, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrDecryptionFailed)
	}

	// decode into a fresh value so a payload that doesn't fit out's type
	// can't leave it half written.
	tmp := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(plaintext, tmp.Interface()); err != nil {
		return fmt.Errorf("%s: malformed payload: %w", op, ErrDecryptionFailed)
	}
	rv.Elem().Set(tmp.Elem())
	return nil
}

func validate(secret string, opts options) error {
	switch {
	case len(secret) < MinSecretLength:
		return fmt.Errorf("secret must be at least %d bytes: %w", MinSecretLength, ErrInvalidSecret)
	case opts.withSalt == "":
		return fmt.Errorf("salt is empty: %w", ErrInvalidParameter)
	case opts.withIterations < DefaultIterations:
		return fmt.Errorf("iterations %d is less than %d: %w", opts.withIterations, DefaultIterations, ErrInvalidParameter)
	case opts.withMaxSize <= 0 || opts.withMaxSize > MaxEnvelopeSize:
		return fmt.Errorf("max size %d is not within (0, %d]: %w", opts.withMaxSize, MaxEnvelopeSize, ErrInvalidParameter)
	}
	return nil
}

func (o options) key(secret string) []byte {
	if o.withKeyCache != nil {
		return o.withKeyCache.key(secret, o.withSalt, o.withIterations)
	}
	return deriveKey(secret, o.withSalt, o.withIterations)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, ivSize)
}

func sizeError(op string, n, limit int) error {
	return fmt.Errorf(
		"%s: envelope would be %d bytes but the limit is %d; the payload is too large for a single cookie "+
			"(large id_token claims, group lists or long refresh tokens are the usual cause), "+
			"store less or split the data across multiple envelopes: %w",
		op, n, limit, ErrSizeLimit)
}

// Sealer binds a secret and options so callers don't pass them around.
type Sealer struct {
	secret string
	opts   []Option
}

// NewSealer validates the secret and options and returns a Sealer.
func NewSealer(secret string, opt ...Option) (*Sealer, error) {
	const op = "seal.NewSealer"
	if err := validate(secret, getOpts(opt...)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Sealer{secret: secret, opts: opt}, nil
}

// Seal is Seal with the Sealer's secret and options.
func (s *Sealer) Seal(data any) (string, error) {
	return Seal(data, s.secret, s.opts...)
}

// Unseal is Unseal with the Sealer's secret and options.
func (s *Sealer) Unseal(sealed string, out any) error {
	return Unseal(sealed, s.secret, out, s.opts...)
}
