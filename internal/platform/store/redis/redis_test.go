package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store/redis"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store/testutil"
)

func TestRedisDriver(t *testing.T) {
	s := miniredis.RunT(t)

	kv, err := store.Open(context.Background(), &store.DriverConfig{
		Driver:  "redis",
		Options: map[string]any{"address": s.Addr(), "dial_timeout": "1s"},
	})
	if err != nil {
		t.Fatalf("failed to open redis store: %v", err)
	}
	defer kv.Close()

	testutil.RunDriverTests(t, "redis", kv, s.FastForward)
}

func TestRedisDriver_ServerSideTTL(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()

	d := redis.New(redis.Options{Address: s.Addr()})
	if err := d.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer d.Close()

	if err := d.Set(ctx, "marrfa:jwt:bob@example.com", []byte("blob"), 50*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	ttl := s.TTL("marrfa:jwt:bob@example.com")
	if ttl < 49*time.Minute || ttl > 50*time.Minute {
		t.Errorf("expected ~50m server ttl, got %v", ttl)
	}
}

func TestRedisDriver_FailFastUnreachable(t *testing.T) {
	d := redis.New(redis.Options{
		Address:     "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	if err := d.Init(context.Background()); err == nil {
		d.Close()
		t.Fatal("expected error when connecting to unreachable redis")
	}
}

func TestDefaultOptions(t *testing.T) {
	var o redis.Options
	o.ApplyDefaults()
	if o.Address != "localhost:6379" {
		t.Errorf("expected default address localhost:6379, got %s", o.Address)
	}
	if o.DialTimeout != 2*time.Second {
		t.Errorf("expected 2s dial timeout, got %v", o.DialTimeout)
	}
}
