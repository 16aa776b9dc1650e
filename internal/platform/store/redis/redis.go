// Package redis implements a Redis/Valkey-backed store driver using valkey-go.
// Expiry is delegated to the server (SET ... PX).
package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/MahdiBaghbani/marrfa-go/internal/platform/cfg"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
)

func init() {
	store.Register("redis", NewDriver)
}

// Options is decoded from [store.drivers.redis].
type Options struct {
	Address     string        `mapstructure:"address"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// ApplyDefaults fills unset fields.
func (o *Options) ApplyDefaults() {
	if o.Address == "" {
		o.Address = "localhost:6379"
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = 2 * time.Second
	}
}

// Driver implements store.KV on a valkey client.
type Driver struct {
	opts   Options
	client valkey.Client
}

// NewDriver creates a redis driver from the registry config.
func NewDriver(c *store.DriverConfig) (store.KV, error) {
	var opts Options
	unused, err := cfg.Decode(c.Options, &opts)
	if err != nil {
		return nil, fmt.Errorf("invalid redis store options: %w", err)
	}
	if len(unused) > 0 {
		logutil.NoopIfNil(c.Logger).Warn("unused redis store options", "keys", unused)
	}
	return New(opts), nil
}

// New creates a driver; Init connects.
func New(opts Options) *Driver {
	opts.ApplyDefaults()
	return &Driver{opts: opts}
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "redis"
}

// Init connects and pings the server, failing fast when it is unreachable.
func (d *Driver) Init(ctx context.Context) error {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{d.opts.Address},
		Username:          d.opts.Username,
		Password:          d.opts.Password,
		SelectDB:          d.opts.DB,
		Dialer:            net.Dialer{Timeout: d.opts.DialTimeout},
		DisableCache:      true,
		ForceSingleClient: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", d.opts.Address, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, d.opts.DialTimeout)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return fmt.Errorf("redis health check failed: %w", err)
	}

	d.client = client
	return nil
}

// Close closes the client.
func (d *Driver) Close() error {
	if d.client != nil {
		d.client.Close()
		d.client = nil
	}
	return nil
}

// Get returns the value for key.
func (d *Driver) Get(ctx context.Context, key string) ([]byte, error) {
	if d.client == nil {
		return nil, store.ErrClosed
	}
	val, err := d.client.Do(ctx, d.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

// Set stores value with a server-side TTL.
func (d *Driver) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.client == nil {
		return store.ErrClosed
	}
	set := d.client.B().Set().Key(key).Value(valkey.BinaryString(value))
	if ttl > 0 {
		ms := ttl.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		return d.client.Do(ctx, set.PxMilliseconds(ms).Build()).Error()
	}
	return d.client.Do(ctx, set.Build()).Error()
}

// Delete removes key.
func (d *Driver) Delete(ctx context.Context, key string) error {
	if d.client == nil {
		return store.ErrClosed
	}
	return d.client.Do(ctx, d.client.B().Del().Key(key).Build()).Error()
}

var _ store.KV = (*Driver)(nil)
