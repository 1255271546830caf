package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAPIConfigDefaults(t *testing.T) {
	t.Setenv("TEAM_ROSTER_CAPACITY", "")
	os.Unsetenv("TEAM_ROSTER_CAPACITY")

	cfg := LoadAPIConfig()
	if cfg.RosterCapacity != DefaultRosterCapacity {
		t.Fatalf("expected default capacity %d, got %d", DefaultRosterCapacity, cfg.RosterCapacity)
	}
	if cfg.AccessTokenTTL != time.Hour {
		t.Fatalf("unexpected access token ttl %v", cfg.AccessTokenTTL)
	}
}

func TestLoadAPIConfigRejectsNonPositiveCapacity(t *testing.T) {
	t.Setenv("TEAM_ROSTER_CAPACITY", "0")
	if cfg := LoadAPIConfig(); cfg.RosterCapacity != DefaultRosterCapacity {
		t.Fatalf("expected fallback capacity, got %d", cfg.RosterCapacity)
	}
	t.Setenv("TEAM_ROSTER_CAPACITY", "4")
	if cfg := LoadAPIConfig(); cfg.RosterCapacity != 4 {
		t.Fatalf("expected capacity 4, got %d", cfg.RosterCapacity)
	}
}

func TestGetDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("EVENT_HEARTBEAT", "soon")
	if got := GetDuration("EVENT_HEARTBEAT", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %v", got)
	}
	t.Setenv("EVENT_HEARTBEAT", "3s")
	if got := GetDuration("EVENT_HEARTBEAT", time.Second); got != 3*time.Second {
		t.Fatalf("expected 3s, got %v", got)
	}
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CREW_DOTENV_NEW=from-file\nCREW_DOTENV_SET=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CREW_DOTENV_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("CREW_DOTENV_NEW") })

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))

	if got := GetString("CREW_DOTENV_NEW", ""); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := GetString("CREW_DOTENV_SET", ""); got != "from-env" {
		t.Fatalf("expected environment to win, got %q", got)
	}
}

func TestGetListSplitsAndTrims(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.168.1.7 ")
	got := LoadAPIConfig().TrustedProxies
	if len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "192.168.1.7" {
		t.Fatalf("unexpected trusted proxies %q", got)
	}
	t.Setenv("TRUSTED_PROXIES", "")
	if got := GetList("TRUSTED_PROXIES"); len(got) != 0 {
		t.Fatalf("expected empty list, got %q", got)
	}
}
