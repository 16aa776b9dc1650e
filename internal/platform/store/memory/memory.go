// Package memory provides an in-process store driver with TTL support.
// Nothing survives a restart; use it for tests and throwaway sessions.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MahdiBaghbani/marrfa-go/internal/platform/cfg"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Options is decoded from [store.drivers.memory].
type Options struct {
	// CleanupInterval controls how often expired entries are purged (0 disables).
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ApplyDefaults sets the default cleanup interval.
func (o *Options) ApplyDefaults() {
	if o.CleanupInterval == 0 {
		o.CleanupInterval = 5 * time.Minute
	}
}

// Driver is an in-memory KV store.
type Driver struct {
	mu       sync.RWMutex
	items    map[string]*store.Entry
	now      func() time.Time
	interval time.Duration
	stop     chan struct{}
	closed   bool
}

// NewDriver creates a memory driver from the registry config.
func NewDriver(c *store.DriverConfig) (store.KV, error) {
	var opts Options
	if _, err := cfg.Decode(c.Options, &opts); err != nil {
		return nil, fmt.Errorf("invalid memory store options: %w", err)
	}
	return New(opts.CleanupInterval, c.Now), nil
}

// New creates a memory driver. A nil clock uses time.Now.
func New(cleanupInterval time.Duration, clock func() time.Time) *Driver {
	if clock == nil {
		clock = time.Now
	}
	return &Driver{
		items:    make(map[string]*store.Entry),
		now:      clock,
		interval: cleanupInterval,
		stop:     make(chan struct{}),
	}
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "memory"
}

// Init starts the cleanup goroutine when enabled.
func (d *Driver) Init(ctx context.Context) error {
	if d.interval > 0 {
		go d.cleanupLoop(d.interval)
	}
	return nil
}

func (d *Driver) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.deleteExpired()
		case <-d.stop:
			return
		}
	}
}

func (d *Driver) deleteExpired() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, e := range d.items {
		if e.Expired(now) {
			delete(d.items, k)
		}
	}
}

// Get retrieves a copy of the value for key.
func (d *Driver) Get(ctx context.Context, key string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	e, ok := d.items[key]
	if !ok || e.Expired(d.now()) {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), e.Value...), nil
}

// Set stores a copy of value with the given TTL.
func (d *Driver) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	d.items[key] = store.NewEntry(key, value, ttl, d.now())
	return nil
}

// Delete removes a key.
func (d *Driver) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	delete(d.items, key)
	return nil
}

// Close stops the cleanup goroutine. Close is idempotent.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.closed {
		d.closed = true
		close(d.stop)
	}
	return nil
}

var _ store.KV = (*Driver)(nil)
