package persistence

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/config"
)

// exerciseKV runs the behaviour every backend must share.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if err := kv.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	if _, found, err := kv.Get(ctx, "tms_missing"); err != nil || found {
		t.Fatalf("Get(missing) = found %v, err %v", found, err)
	}

	if err := kv.Set(ctx, "tms_tickets", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set(ctx, "tms_tickets", []byte(`[{"id":"TCKT-20261017-0001"}]`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, found, err := kv.Get(ctx, "tms_tickets")
	if err != nil || !found {
		t.Fatalf("Get = found %v, err %v", found, err)
	}
	if want := []byte(`[{"id":"TCKT-20261017-0001"}]`); !bytes.Equal(got, want) {
		t.Errorf("Get = %s, want %s", got, want)
	}

	if err := kv.Remove(ctx, "tms_tickets"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, found, _ := kv.Get(ctx, "tms_tickets"); found {
		t.Error("key still present after Remove")
	}
	if err := kv.Remove(ctx, "tms_tickets"); err != nil {
		t.Errorf("Remove of missing key: %v", err)
	}
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestMemoryKVCopiesValues(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	value := []byte("abc")
	if err := kv.Set(ctx, "k", value); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value[0] = 'z'
	got, _, _ := kv.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller slice: %q", got)
	}
	got[1] = 'z'
	again, _, _ := kv.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("returned value aliased stored slice: %q", again)
	}
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tms.db")
	kv, err := NewSQLiteKV(config.SQLiteConfig{Path: path, PoolSize: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	defer kv.Close()
	exerciseKV(t, kv)
}

func TestSQLiteKVPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tms.db")
	cfg := config.SQLiteConfig{Path: path, PoolSize: 1}
	ctx := context.Background()

	first, err := NewSQLiteKV(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	if err := first.Set(ctx, "tms_currentUserId", []byte(`"user_admin"`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := NewSQLiteKV(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, found, err := second.Get(ctx, "tms_currentUserId")
	if err != nil || !found {
		t.Fatalf("Get after reopen = found %v, err %v", found, err)
	}
	if string(got) != `"user_admin"` {
		t.Errorf("Get after reopen = %s", got)
	}
}

func TestSQLiteKVRequiresPath(t *testing.T) {
	if _, err := NewSQLiteKV(config.SQLiteConfig{}, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRedisKV(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	r := NewRedis(config.RedisConfig{Addr: addr}, zap.NewNop())
	defer r.Close()
	exerciseKV(t, r)
}

func TestPostgresKV(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	pg, err := NewPostgres(ctx, config.PostgresConfig{DSN: dsn}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer pg.Close()
	if err := RunMigrations(ctx, pg.PoolHandle(), zap.NewNop()); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	exerciseKV(t, pg)
}

func TestMySQLKV(t *testing.T) {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	m, err := NewMySQL(context.Background(), config.MySQLConfig{DSN: dsn}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewMySQL: %v", err)
	}
	defer m.Close()
	exerciseKV(t, m)
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	kv, err := Open(ctx, &config.Config{Storage: config.StorageConfig{Driver: config.DriverMemory}}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if _, ok := kv.(*MemoryKV); !ok {
		t.Errorf("Open(memory) = %T", kv)
	}

	cfg := &config.Config{
		Storage: config.StorageConfig{Driver: config.DriverSQLite},
		SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "open.db")},
	}
	kv, err = Open(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	defer kv.Close()
	if _, ok := kv.(*SQLiteKV); !ok {
		t.Errorf("Open(sqlite) = %T", kv)
	}

	if _, err := Open(ctx, &config.Config{Storage: config.StorageConfig{Driver: config.DriverPostgres}}, zap.NewNop()); err == nil {
		t.Error("Open(postgres) without DSN should fail")
	}
	if _, err := Open(ctx, &config.Config{Storage: config.StorageConfig{Driver: "indexeddb"}}, zap.NewNop()); err == nil {
		t.Error("Open(unknown) should fail")
	}
}
