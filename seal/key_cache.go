// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package seal

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/singleflight"
)

// KeyCache caches keys derived from (secret, salt, iterations) for the life of
// the process. It is safe for concurrent use; concurrent derivations of the
// same key are collapsed into one.
type KeyCache struct {
	mu   sync.RWMutex
	keys map[string][]byte

	group singleflight.Group
}

// NewKeyCache creates an empty KeyCache.
func NewKeyCache() *KeyCache {
	return &KeyCache{keys: make(map[string][]byte)}
}

// Len returns the number of cached keys.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// Reset drops every cached key.
func (c *KeyCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = make(map[string][]byte)
}

func (c *KeyCache) key(secret, salt string, iterations int) []byte {
	id := cacheID(secret, salt, iterations)

	c.mu.RLock()
	k, ok := c.keys[id]
	c.mu.RUnlock()
	if ok {
		return k
	}

	v, _, _ := c.group.Do(id, func() (interface{}, error) {
		k := deriveKey(secret, salt, iterations)
		c.mu.Lock()
		c.keys[id] = k
		c.mu.Unlock()
		return k, nil
	})
	return v.([]byte)
}

// cacheID hashes the derivation inputs so the raw secret is never used as a
// map key.
func cacheID(secret, salt string, iterations int) string {
	h := sha256.New()
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(secret)))
	h.Write(n[:])
	h.Write([]byte(secret))
	binary.BigEndian.PutUint64(n[:], uint64(len(salt)))
	h.Write(n[:])
	h.Write([]byte(salt))
	binary.BigEndian.PutUint64(n[:], uint64(iterations))
	h.Write(n[:])
	return hex.EncodeToString(h.Sum(nil))
}

func deriveKey(secret, salt string, iterations int) []byte {
	return pbkdf2.Key([]byte(secret), []byte(salt), iterations, keySize, sha256.New)
}
