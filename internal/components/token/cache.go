// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

package token

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/identity"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
)

// DefaultKeyPrefix namespaces token entries in the shared store.
const DefaultKeyPrefix = "marrfa:jwt:"

// Sealer encrypts cache blobs at rest. aad is the cache key.
type Sealer interface {
	Seal(plaintext, aad []byte) ([]byte, error)
	Open(blob, aad []byte) ([]byte, error)
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	KeyPrefix string
	Sealer    Sealer
	Clock     func() time.Time
	Logger    *slog.Logger
}

// cacheBlob is the persisted entry.
type cacheBlob struct {
	Token string `json:"token"`
	ExpMs int64  `json:"expMs"`
}

// Cache persists one token per identity in a store.KV.
// Reads treat every failure as a miss; writes never fail the caller.
type Cache struct {
	kv     store.KV
	prefix string
	sealer Sealer
	now    func() time.Time
	logger *slog.Logger
}

// NewCache creates a token cache over kv.
func NewCache(kv store.KV, opts CacheOptions) *Cache {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache{
		kv:     kv,
		prefix: opts.KeyPrefix,
		sealer: opts.Sealer,
		now:    opts.Clock,
		logger: logutil.NoopIfNil(opts.Logger),
	}
}

// Key returns the store key for an identity.
func (c *Cache) Key(id string) string {
	return c.prefix + identity.Normalize(id)
}

// Load returns the cached token for id, or false when missing, unreadable or expired.
func (c *Cache) Load(ctx context.Context, id string) (*BearerToken, bool) {
	id = identity.Normalize(id)
	if id == "" {
		return nil, false
	}
	key := c.Key(id)

	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("token cache read failed", "identity", id, "error", err)
		}
		return nil, false
	}

	if c.sealer != nil {
		data, err = c.sealer.Open(data, []byte(key))
		if err != nil {
			c.logger.Warn("token cache entry could not be opened", "identity", id, "error", err)
			return nil, false
		}
	}

	var blob cacheBlob
	if err := json.Unmarshal(data, &blob); err != nil || blob.Token == "" || blob.ExpMs == 0 {
		c.logger.Debug("token cache entry malformed", "identity", id)
		return nil, false
	}

	tok := &BearerToken{
		Token:     blob.Token,
		Identity:  id,
		ExpiresAt: time.UnixMilli(blob.ExpMs),
	}
	if tok.IsExpired(c.now()) {
		c.logger.Debug("token cache entry expired", "identity", id, "expired_at", tok.ExpiresAt)
		return nil, false
	}
	return tok, true
}

// Save stores raw for id with expiry now+ttl, clamped to the JWT exp claim when earlier.
// Storage failures are logged and swallowed; the returned token is always usable in memory.
func (c *Cache) Save(ctx context.Context, id, raw string, ttl time.Duration) *BearerToken {
	id = identity.Normalize(id)
	now := c.now()
	tok := &BearerToken{
		Token:     raw,
		Identity:  id,
		ExpiresAt: ExpiryFor(raw, now, ttl),
	}
	if id == "" {
		return tok
	}

	data, err := json.Marshal(cacheBlob{Token: raw, ExpMs: tok.ExpiresAt.UnixMilli()})
	if err != nil {
		c.logger.Warn("token cache encode failed", "identity", id, "error", err)
		return tok
	}

	key := c.Key(id)
	if c.sealer != nil {
		data, err = c.sealer.Seal(data, []byte(key))
		if err != nil {
			c.logger.Warn("token cache seal failed", "identity", id, "error", err)
			return tok
		}
	}

	storeTTL := tok.ExpiresAt.Sub(now)
	if storeTTL < time.Millisecond {
		storeTTL = time.Millisecond
	}
	if err := c.kv.Set(ctx, key, data, storeTTL); err != nil {
		c.logger.Warn("token cache write failed", "identity", id, "error", err)
	}
	return tok
}

// Delete removes the cached token for id. Failures are logged and swallowed.
func (c *Cache) Delete(ctx context.Context, id string) {
	id = identity.Normalize(id)
	if id == "" {
		return
	}
	if err := c.kv.Delete(ctx, c.Key(id)); err != nil {
		c.logger.Warn("token cache delete failed", "identity", id, "error", err)
	}
}

// ExpiryFor returns now+ttl, or the token's exp claim when raw is a JWT expiring sooner.
// The signature is not verified: the claim only ever shortens local trust.
func ExpiryFor(raw string, now time.Time, ttl time.Duration) time.Time {
	expiresAt := now.Add(ttl)

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return expiresAt
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return expiresAt
	}
	if exp.Time.Before(expiresAt) {
		return exp.Time
	}
	return expiresAt
}
