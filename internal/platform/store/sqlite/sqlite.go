// Package sqlite implements a SQLite-backed store driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/marrfa-go/internal/platform/cfg"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Options is decoded from [store.drivers.sqlite].
type Options struct {
	// File is the database file name inside the data dir.
	File string `mapstructure:"file"`
}

// ApplyDefaults sets the default database file name.
func (o *Options) ApplyDefaults() {
	if o.File == "" {
		o.File = "marrfa.db"
	}
}

// Driver implements store.KV using SQLite via GORM.
type Driver struct {
	path string
	now  func() time.Time
	db   *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(c *store.DriverConfig) (store.KV, error) {
	if c.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}
	var opts Options
	if _, err := cfg.Decode(c.Options, &opts); err != nil {
		return nil, fmt.Errorf("invalid sqlite store options: %w", err)
	}

	return &Driver{
		path: filepath.Join(c.DataDir, opts.File),
		now:  c.Now,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(d.path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	d.db = db

	if err := db.WithContext(ctx).AutoMigrate(&store.Entry{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	d.db = nil
	return sqlDB.Close()
}

// Get returns the value for key. Expired rows are deleted lazily.
func (d *Driver) Get(ctx context.Context, key string) ([]byte, error) {
	if d.db == nil {
		return nil, store.ErrClosed
	}

	var entry store.Entry
	result := d.db.WithContext(ctx).First(&entry, "entry_key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}

	if entry.Expired(d.now()) {
		d.db.WithContext(ctx).Delete(&store.Entry{}, "entry_key = ?", key)
		return nil, store.ErrNotFound
	}
	return entry.Value, nil
}

// Set upserts the value for key.
func (d *Driver) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.db == nil {
		return store.ErrClosed
	}

	entry := store.NewEntry(key, value, ttl, d.now())
	result := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		UpdateAll: true,
	}).Create(entry)
	return result.Error
}

// Delete removes key.
func (d *Driver) Delete(ctx context.Context, key string) error {
	if d.db == nil {
		return store.ErrClosed
	}
	return d.db.WithContext(ctx).Delete(&store.Entry{}, "entry_key = ?", key).Error
}

var _ store.KV = (*Driver)(nil)
