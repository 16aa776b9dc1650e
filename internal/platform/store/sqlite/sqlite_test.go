package sqlite_test

import (
	"context"
	"testing"

	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
	_ "github.com/MahdiBaghbani/marrfa-go/internal/platform/store/sqlite"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store/testutil"
)

func TestSQLiteDriver(t *testing.T) {
	clock := testutil.NewClock()
	kv, err := store.Open(context.Background(), &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
		Clock:   clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	defer kv.Close()

	testutil.RunDriverTests(t, "sqlite", kv, clock.Advance)
}

func TestSQLiteDriver_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: dir,
		Options: map[string]any{"file": "tokens.db"},
	}

	kv, err := store.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	if err := kv.Set(ctx, "marrfa:jwt:alice@example.com", []byte(`{"token":"t"}`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	kv.Close()

	kv2, err := store.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to reopen sqlite store: %v", err)
	}
	defer kv2.Close()

	got, err := kv2.Get(ctx, "marrfa:jwt:alice@example.com")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got) != `{"token":"t"}` {
		t.Errorf("unexpected value after reopen: %s", got)
	}
}

func TestSQLiteDriver_RequiresDataDir(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "sqlite"}); err == nil {
		t.Error("expected error without data_dir")
	}
}
