package config

import (
	"os"
	"testing"

	"github.com/synnergy-labs/shardindexer/internal/nodeclient"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	clearEnv(t, "DATABASE_URL")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "DATABASE_URL", "ENVIRONMENT", "GROUP_NUM", "CUSTOM_NODE_URL")
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Cleanup(func() { os.Unsetenv("DATABASE_URL") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Network != nodeclient.Mainnet {
		t.Fatalf("default network = %v, want Mainnet", cfg.Network)
	}
	if cfg.GroupNum != 4 {
		t.Fatalf("default GroupNum = %d, want 4", cfg.GroupNum)
	}
	if cfg.Sync.Step != 1000 {
		t.Fatalf("default Sync.Step = %d, want 1000", cfg.Sync.Step)
	}
	if cfg.ReorgWindow.Milliseconds() != reorgWindowMillis {
		t.Fatalf("default ReorgWindow = %v, want %dms", cfg.ReorgWindow, reorgWindowMillis)
	}
}

func TestLoadCustomNetwork(t *testing.T) {
	clearEnv(t, "DATABASE_URL", "CUSTOM_NODE_URL")
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("CUSTOM_NODE_URL", "http://example.invalid")
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("CUSTOM_NODE_URL")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Network != nodeclient.Custom {
		t.Fatalf("network = %v, want Custom when CUSTOM_NODE_URL is set", cfg.Network)
	}
}
