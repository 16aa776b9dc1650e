// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

package token

import (
	"context"
	"sync"
	"time"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/identity"
)

// Manager holds the session's current token and mediates its cache.
// It is the only writer of the current token. Safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	current *BearerToken
	cache   *Cache
	now     func() time.Time
}

// NewManager creates a manager. A nil cache keeps tokens in memory only.
func NewManager(cache *Cache, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{cache: cache, now: clock}
}

// SetCurrent replaces the in-memory token.
func (m *Manager) SetCurrent(t *BearerToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}

// Current returns the in-memory token, which may be nil or expired.
func (m *Manager) Current() *BearerToken {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Clear drops the in-memory token. The persisted entry is kept.
func (m *Manager) Clear() {
	m.SetCurrent(nil)
}

// Forget drops the in-memory token and deletes the persisted entry for id.
func (m *Manager) Forget(ctx context.Context, id string) {
	m.Clear()
	if m.cache != nil {
		m.cache.Delete(ctx, id)
	}
}

// LoadFromCache promotes a cached token for id to current.
func (m *Manager) LoadFromCache(ctx context.Context, id string) (*BearerToken, bool) {
	if m.cache == nil {
		return m.currentFor(identity.Normalize(id))
	}
	tok, ok := m.cache.Load(ctx, id)
	if !ok {
		return nil, false
	}
	m.SetCurrent(tok)
	return tok, true
}

// SaveToCache persists raw for id and makes it current.
func (m *Manager) SaveToCache(ctx context.Context, id, raw string, ttl time.Duration) *BearerToken {
	var tok *BearerToken
	if m.cache != nil {
		tok = m.cache.Save(ctx, id, raw, ttl)
	} else {
		now := m.now()
		tok = &BearerToken{Token: raw, Identity: identity.Normalize(id), ExpiresAt: ExpiryFor(raw, now, ttl)}
	}
	m.SetCurrent(tok)
	return tok
}

// Bearer returns the current token string if it is unexpired and, when id is
// non-empty, owned by id.
func (m *Manager) Bearer(id string) (string, bool) {
	tok, ok := m.currentFor(identity.Normalize(id))
	if !ok {
		return "", false
	}
	return tok.Token, true
}

func (m *Manager) currentFor(id string) (*BearerToken, bool) {
	tok := m.Current()
	if !tok.UsableFor(id, m.now()) {
		return nil, false
	}
	return tok, true
}
