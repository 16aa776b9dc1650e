package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: sqlite, json, redis, memory
	Driver string

	// DataDir is the directory for data files (json file, sqlite db)
	DataDir string

	// Options is the raw [store.drivers.<name>] map, decoded by each driver.
	Options map[string]any

	// Logger receives driver warnings. Nil discards.
	Logger *slog.Logger

	// Clock overrides time.Now for expiry bookkeeping (tests).
	Clock func() time.Time
}

// Now returns the configured clock's time.
func (c *DriverConfig) Now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// DriverFactory is a function that creates a driver instance.
type DriverFactory func(cfg *DriverConfig) (KV, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a driver instance based on the configuration. The caller must Init it.
func New(cfg *DriverConfig) (KV, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}

	return factory(cfg)
}

// Open creates and initializes a driver.
func Open(ctx context.Context, cfg *DriverConfig) (KV, error) {
	kv, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := kv.Init(ctx); err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("failed to init %s store: %w", cfg.Driver, err)
	}
	return kv, nil
}

// AvailableDrivers returns the sorted list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
