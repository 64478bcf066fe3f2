package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("TICKETS_ALLOW_REASSIGN_RESOLVED", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, DriverMemory)
	}
	if cfg.Storage.KeyPrefix != "tms_" {
		t.Errorf("Storage.KeyPrefix = %q, want tms_", cfg.Storage.KeyPrefix)
	}
	if cfg.App.Addr() != "0.0.0.0:8080" {
		t.Errorf("App.Addr() = %q", cfg.App.Addr())
	}
	if !cfg.Tickets.AllowReassignResolved {
		t.Error("AllowReassignResolved should default to true")
	}
	if cfg.Notification.DefaultSenderID != "user_admin" {
		t.Errorf("DefaultSenderID = %q", cfg.Notification.DefaultSenderID)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("AUTH_BCRYPT_COST", "not-a-number")
	t.Setenv("RELAY_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, DriverSQLite)
	}
	if cfg.SQLite.Path != "/tmp/x.db" {
		t.Errorf("SQLite.Path = %q", cfg.SQLite.Path)
	}
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want fallback 12", cfg.Auth.BcryptCost)
	}
	if !cfg.Relay.Enabled {
		t.Error("Relay.Enabled = false, want true")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "indexeddb")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("REDIS_DB", "two")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid REDIS_DB")
	}
}
