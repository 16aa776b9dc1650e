// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

// Package token caches and tracks the bearer token issued by the backend's /jwt endpoint.
package token

import "time"

// DefaultTTL is how long a freshly issued token is trusted when no better expiry is known.
const DefaultTTL = 50 * time.Minute

// BearerToken is an issued token bound to the identity it was requested for.
type BearerToken struct {
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsExpired reports whether the token is at or past its expiry.
func (t *BearerToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// UsableFor reports whether t may be attached to a request made on behalf of identity.
// An empty identity skips the ownership check.
func (t *BearerToken) UsableFor(identity string, now time.Time) bool {
	if t == nil || t.Token == "" || t.IsExpired(now) {
		return false
	}
	return identity == "" || identity == t.Identity
}
