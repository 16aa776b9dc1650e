// Package store provides the persistent key-value primitives behind the token cache.
package store

import (
	"context"
	"errors"
	"time"
)

// Common errors for store operations.
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Driver defines the lifecycle of a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init prepares the backend (open files, migrate tables, ping servers).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (sqlite, json, redis, memory).
	Name() string
}

// KV is a namespaced byte store with optional per-entry expiry.
type KV interface {
	Driver

	// Get returns the value for key, or ErrNotFound when absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous entry.
	// ttl <= 0 stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Entry is the persisted form of a KV value for drivers that track expiry themselves.
type Entry struct {
	Key       string `json:"-" gorm:"primaryKey;column:entry_key"`
	Value     []byte `json:"value"`
	ExpiresAt int64  `json:"expires_at"` // unix millis, 0 = never
	UpdatedAt int64  `json:"updated_at"`
}

// TableName pins the sqlite table name.
func (Entry) TableName() string { return "kv_entries" }

// Expired reports whether the entry has expired at now.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt > 0 && now.UnixMilli() >= e.ExpiresAt
}

// NewEntry builds an entry for key expiring ttl after now.
func NewEntry(key string, value []byte, ttl time.Duration, now time.Time) *Entry {
	e := &Entry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		UpdatedAt: now.UnixMilli(),
	}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl).UnixMilli()
	}
	return e
}
