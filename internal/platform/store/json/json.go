// Package json implements a JSON file-backed store driver.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MahdiBaghbani/marrfa-go/internal/platform/cfg"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
)

func init() {
	store.Register("json", NewDriver)
}

// Options is decoded from [store.drivers.json].
type Options struct {
	// File is the JSON file name inside the data dir.
	File string `mapstructure:"file"`
}

// ApplyDefaults sets the default file name.
func (o *Options) ApplyDefaults() {
	if o.File == "" {
		o.File = "kv.json"
	}
}

// Driver implements store.KV on a single JSON document.
type Driver struct {
	dataDir  string
	filename string
	now      func() time.Time

	mu      sync.RWMutex
	closed  bool
	entries map[string]*store.Entry
}

// NewDriver creates a new JSON driver instance.
func NewDriver(c *store.DriverConfig) (store.KV, error) {
	if c.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for json driver")
	}
	var opts Options
	if _, err := cfg.Decode(c.Options, &opts); err != nil {
		return nil, fmt.Errorf("invalid json store options: %w", err)
	}

	return &Driver{
		dataDir:  c.DataDir,
		filename: opts.File,
		now:      c.Now,
		entries:  make(map[string]*store.Entry),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "json"
}

// Init loads existing entries from disk.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	data, err := os.ReadFile(d.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", d.filename, err)
	}
	if err := json.Unmarshal(data, &d.entries); err != nil {
		return fmt.Errorf("failed to parse %s: %w", d.filename, err)
	}
	if d.entries == nil {
		d.entries = make(map[string]*store.Entry)
	}
	for k, e := range d.entries {
		e.Key = k
	}
	return nil
}

// Close releases resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Driver) path() string {
	return filepath.Join(d.dataDir, d.filename)
}

// save atomically writes all entries: temp file, fsync, rename.
// Caller must hold d.mu for writing.
func (d *Driver) save() error {
	path := d.path()
	tempPath := path + ".tmp"

	jsonData, err := json.MarshalIndent(d.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(jsonData); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Get returns the value for key.
func (d *Driver) Get(ctx context.Context, key string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	e, ok := d.entries[key]
	if !ok || e.Expired(d.now()) {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), e.Value...), nil
}

// Set stores value and persists the document. Expired entries are pruned on write.
func (d *Driver) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	now := d.now()
	for k, e := range d.entries {
		if e.Expired(now) {
			delete(d.entries, k)
		}
	}
	d.entries[key] = store.NewEntry(key, value, ttl, now)
	return d.save()
}

// Delete removes key and persists the document.
func (d *Driver) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.entries[key]; !ok {
		return nil
	}
	delete(d.entries, key)
	return d.save()
}

var _ store.KV = (*Driver)(nil)
