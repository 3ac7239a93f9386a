package storeconfig

import (
	"os"
	"path/filepath"
	"testing"

	"signet-wallet/go-keystore/internal/keyfile"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Profile != ProfileStandard {
		t.Fatalf("unexpected default profile: %s", cfg.Profile)
	}
	if cfg.Params != keyfile.StandardParams {
		t.Fatalf("unexpected default params: %+v", cfg.Params)
	}
	if cfg.AttemptsPerMinute <= 0 || cfg.AttemptBurst <= 0 {
		t.Fatalf("throttle should default on")
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywarden.yaml")
	content := []byte("keystore:\n  dir: /var/lib/keywarden\n  profile: light\nunlock:\n  attemptsPerMinute: 12\n  attemptBurst: 5\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Dir != "/var/lib/keywarden" {
		t.Fatalf("dir not applied: %s", cfg.Dir)
	}
	if cfg.Profile != ProfileLight || cfg.Params != keyfile.LightParams {
		t.Fatalf("light profile not applied: %s %+v", cfg.Profile, cfg.Params)
	}
	if cfg.AttemptsPerMinute != 12 || cfg.AttemptBurst != 5 {
		t.Fatalf("throttle settings not applied: %+v", cfg)
	}
}

func TestLoadMissingExplicitPathFails(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config path")
	}
}

func TestCustomOverridesMarkProfileCustom(t *testing.T) {
	cfg := DefaultConfig()
	err := Merge(&cfg, FileConfig{Keystore: KeystoreSection{ScryptN: 1 << 14, ScryptP: 2}})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if cfg.Profile != "custom" {
		t.Fatalf("expected custom profile, got %s", cfg.Profile)
	}
	if cfg.Params.N != 1<<14 || cfg.Params.P != 2 {
		t.Fatalf("overrides not applied: %+v", cfg.Params)
	}
}

func TestUnknownProfileRejected(t *testing.T) {
	cfg := DefaultConfig()
	if err := Merge(&cfg, FileConfig{Keystore: KeystoreSection{Profile: "paranoid"}}); err == nil {
		t.Fatalf("expected error for unknown profile")
	}
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("KEYWARDEN_DIR", "/env/keystore")
	t.Setenv("KEYWARDEN_PROFILE", "light")

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(&cfg); err != nil {
		t.Fatalf("env overrides failed: %v", err)
	}
	if cfg.Dir != "/env/keystore" {
		t.Fatalf("env dir not applied: %s", cfg.Dir)
	}
	if cfg.Params != keyfile.LightParams {
		t.Fatalf("env profile not applied: %+v", cfg.Params)
	}

	t.Setenv("KEYWARDEN_SCRYPT_N", "not-a-number")
	if err := ApplyEnvOverrides(&cfg); err == nil {
		t.Fatalf("expected error for malformed KEYWARDEN_SCRYPT_N")
	}
}
