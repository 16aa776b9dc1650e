// Package testutil provides the shared conformance suite for store drivers.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
)

// Clock is a manually advanced clock for expiry tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Advancer moves time forward for a driver under test. Drivers with their own
// clock (redis via miniredis) pass a function that fast-forwards the server.
type Advancer func(d time.Duration)

// RunDriverTests runs the standard KV suite against an initialized driver.
func RunDriverTests(t *testing.T, driverName string, kv store.KV, advance Advancer) {
	ctx := context.Background()

	if kv.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, kv.Name())
	}

	t.Run("MissingKey", func(t *testing.T) {
		_, err := kv.Get(ctx, "missing")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		if err := kv.Set(ctx, "k1", []byte("v1"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := kv.Get(ctx, "k1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "v1" {
			t.Errorf("expected v1, got %q", got)
		}

		if err := kv.Set(ctx, "k1", []byte("v2"), 0); err != nil {
			t.Fatalf("overwrite failed: %v", err)
		}
		got, _ = kv.Get(ctx, "k1")
		if string(got) != "v2" {
			t.Errorf("expected v2 after overwrite, got %q", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := kv.Set(ctx, "k2", []byte("v"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := kv.Delete(ctx, "k2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := kv.Get(ctx, "k2"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := kv.Delete(ctx, "never-set"); err != nil {
			t.Errorf("expected deleting a missing key to succeed, got %v", err)
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		if err := kv.Set(ctx, "ttl", []byte("short"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := kv.Set(ctx, "forever", []byte("long"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if _, err := kv.Get(ctx, "ttl"); err != nil {
			t.Fatalf("expected live entry before expiry, got %v", err)
		}

		advance(2 * time.Minute)

		if _, err := kv.Get(ctx, "ttl"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound after expiry, got %v", err)
		}
		if _, err := kv.Get(ctx, "forever"); err != nil {
			t.Errorf("expected entry without ttl to survive, got %v", err)
		}
	})

	t.Run("BinaryValues", func(t *testing.T) {
		val := []byte{0x00, 0xff, 0x10, '"', '\n'}
		if err := kv.Set(ctx, "bin", val, 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := kv.Get(ctx, "bin")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != string(val) {
			t.Errorf("binary value mismatch: got %v", got)
		}
	})
}
