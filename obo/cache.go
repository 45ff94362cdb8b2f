// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package obo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/cap-entra/oidc"
	"github.com/jonboulle/clockwork"
	"k8s.io/apimachinery/pkg/util/cache"
)

const (
	// DefaultMaxEntries is the default capacity of a TokenCache.
	DefaultMaxEntries = 1000

	// DefaultBuffer is subtracted from each token's expiry before it's
	// considered usable.
	DefaultBuffer = 5 * time.Minute
)

// CacheEntry is a cached downstream token.
type CacheEntry struct {
	AccessToken oidc.AccessToken
	TokenType   string
	ExpiresAt   time.Time
	Scope       string

	// Claims is the claims challenge the token was issued for, if any.
	Claims string
}

// TokenCache is an LRU cache of downstream tokens. An entry is never
// returned once now >= ExpiresAt - buffer, and when the cache is full the
// least recently used entry is evicted. It's safe for concurrent use and is
// meant to be shared by every Exchanger of a process.
type TokenCache struct {
	lru    *cache.LRUExpireCache
	buffer time.Duration
	clock  clockwork.Clock
	max    int
}

// NewTokenCache creates a TokenCache holding at most maxEntries tokens. Zero
// values use DefaultMaxEntries and DefaultBuffer.
//
// Supported options:
//   - WithClock
func NewTokenCache(maxEntries int, buffer time.Duration, opt ...Option) (*TokenCache, error) {
	const op = "obo.NewTokenCache"
	switch {
	case maxEntries < 0:
		return nil, fmt.Errorf("%s: max entries %d is negative: %w", op, maxEntries, ErrInvalidConfig)
	case buffer < 0:
		return nil, fmt.Errorf("%s: buffer %s is negative: %w", op, buffer, ErrInvalidConfig)
	}
	if maxEntries == 0 {
		maxEntries = DefaultMaxEntries
	}
	if buffer == 0 {
		buffer = DefaultBuffer
	}
	opts := getCacheOpts(opt...)
	return &TokenCache{
		lru:    cache.NewLRUExpireCacheWithClock(maxEntries, opts.withClock),
		buffer: buffer,
		clock:  opts.withClock,
		max:    maxEntries,
	}, nil
}

// Get returns the entry for key if it's still usable. An entry within the
// buffer of its expiry is removed.
func (c *TokenCache) Get(key string) (*CacheEntry, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	e, ok := v.(CacheEntry)
	if !ok || !c.usable(e) {
		c.lru.Remove(key)
		return nil, false
	}
	return &e, true
}

// Set stores the entry. An entry that is already within the buffer of its
// expiry isn't stored.
func (c *TokenCache) Set(key string, e CacheEntry) {
	ttl := e.ExpiresAt.Add(-c.buffer).Sub(c.clock.Now())
	if ttl <= 0 {
		return
	}
	c.lru.Add(key, e, ttl)
}

// Remove deletes the entry for key.
func (c *TokenCache) Remove(key string) {
	c.lru.Remove(key)
}

// Len returns the number of usable entries.
func (c *TokenCache) Len() int {
	return len(c.lru.Keys())
}

// Reset removes every entry.
func (c *TokenCache) Reset() {
	c.lru.RemoveAll(func(any) bool { return true })
}

// Buffer returns the cache's expiry buffer.
func (c *TokenCache) Buffer() time.Duration { return c.buffer }

// MaxEntries returns the cache's capacity.
func (c *TokenCache) MaxEntries() int { return c.max }

func (c *TokenCache) usable(e CacheEntry) bool {
	return c.clock.Now().Before(e.ExpiresAt.Add(-c.buffer))
}

// CacheKey returns the cache key of an exchange: client, tenant and subject,
// the resource or the joined scopes, the sorted scopes and a hash of the
// claims challenge. Scope order doesn't matter.
func CacheKey(clientID, tenantID, subject, resource string, scopes []string, claims string) string {
	sorted := sortedScopes(scopes)
	target := resource
	if target == "" {
		target = strings.Join(sorted, " ")
	}
	claimsHash := ""
	if claims != "" {
		sum := sha256.Sum256([]byte(claims))
		claimsHash = hex.EncodeToString(sum[:])
	}
	return strings.Join([]string{
		clientID,
		strings.ToLower(tenantID),
		subject,
		target,
		strings.Join(sorted, " "),
		claimsHash,
	}, "\x00")
}
