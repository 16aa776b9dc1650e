package json_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
	_ "github.com/MahdiBaghbani/marrfa-go/internal/platform/store/json"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store/testutil"
)

func TestJSONDriver(t *testing.T) {
	clock := testutil.NewClock()
	kv, err := store.Open(context.Background(), &store.DriverConfig{
		Driver:  "json",
		DataDir: t.TempDir(),
		Clock:   clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to open json store: %v", err)
	}
	defer kv.Close()

	testutil.RunDriverTests(t, "json", kv, clock.Advance)
}

func TestJSONDriver_PersistsAtomically(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &store.DriverConfig{Driver: "json", DataDir: dir}

	kv, err := store.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to open json store: %v", err)
	}
	if err := kv.Set(ctx, "a", []byte("1"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	kv.Close()

	if _, err := os.Stat(filepath.Join(dir, "kv.json.tmp")); !os.IsNotExist(err) {
		t.Error("expected temp file to be renamed away")
	}

	kv2, err := store.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to reopen json store: %v", err)
	}
	defer kv2.Close()
	got, err := kv2.Get(ctx, "a")
	if err != nil || string(got) != "1" {
		t.Errorf("expected persisted value 1, got %q (err=%v)", got, err)
	}
}

func TestJSONDriver_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "kv.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}
	if _, err := store.Open(context.Background(), &store.DriverConfig{Driver: "json", DataDir: dir}); err == nil {
		t.Error("expected error for corrupt json file")
	}
}

func TestJSONDriver_ClosedRejects(t *testing.T) {
	ctx := context.Background()
	kv, err := store.Open(ctx, &store.DriverConfig{Driver: "json", DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open json store: %v", err)
	}
	kv.Close()
	if err := kv.Set(ctx, "a", []byte("1"), 0); err != store.ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
