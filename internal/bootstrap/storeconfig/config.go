// Package storeconfig loads keystore configuration from YAML with
// environment overrides, merged over built-in defaults.
package storeconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"signet-wallet/go-keystore/internal/keyfile"
)

const (
	ProfileStandard = "standard"
	ProfileLight    = "light"
)

// Config is the resolved runtime configuration.
type Config struct {
	Dir     string
	Params  keyfile.Params
	Profile string

	// Failed-passphrase throttle; zero values disable it.
	AttemptsPerMinute float64
	AttemptBurst      int
}

type FileConfig struct {
	Keystore KeystoreSection `yaml:"keystore"`
	Unlock   UnlockSection   `yaml:"unlock"`
}

type KeystoreSection struct {
	Dir     string `yaml:"dir"`
	Profile string `yaml:"profile"`
	ScryptN int    `yaml:"scryptN"`
	ScryptP int    `yaml:"scryptP"`
}

type UnlockSection struct {
	AttemptsPerMinute float64 `yaml:"attemptsPerMinute"`
	AttemptBurst      int     `yaml:"attemptBurst"`
}

// DefaultConfig returns the standard profile with throttling enabled.
func DefaultConfig() Config {
	return Config{
		Dir:               defaultDir(),
		Profile:           ProfileStandard,
		Params:            keyfile.StandardParams,
		AttemptsPerMinute: 6,
		AttemptBurst:      3,
	}
}

// LoadFromPath reads configPath (or default candidate locations when
// empty), merges it over defaults and applies env overrides last.
func LoadFromPath(configPath string) (Config, error) {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/keywarden.yaml",
			"keywarden.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath != "" {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
			continue
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := Merge(&cfg, parsed); err != nil {
			return Config{}, err
		}
		break
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge folds a parsed file into cfg; empty fields keep their values.
func Merge(cfg *Config, src FileConfig) error {
	if src.Keystore.Dir != "" {
		cfg.Dir = src.Keystore.Dir
	}
	if src.Keystore.Profile != "" {
		if err := applyProfile(cfg, src.Keystore.Profile); err != nil {
			return err
		}
	}
	if src.Keystore.ScryptN != 0 {
		cfg.Params.N = src.Keystore.ScryptN
		cfg.Profile = "custom"
	}
	if src.Keystore.ScryptP != 0 {
		cfg.Params.P = src.Keystore.ScryptP
		cfg.Profile = "custom"
	}
	if src.Unlock.AttemptsPerMinute != 0 {
		cfg.AttemptsPerMinute = src.Unlock.AttemptsPerMinute
	}
	if src.Unlock.AttemptBurst != 0 {
		cfg.AttemptBurst = src.Unlock.AttemptBurst
	}
	return nil
}

// ApplyEnvOverrides lets the environment win over file values.
func ApplyEnvOverrides(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("KEYWARDEN_DIR")); v != "" {
		cfg.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("KEYWARDEN_PROFILE")); v != "" {
		if err := applyProfile(cfg, v); err != nil {
			return err
		}
	}
	if v := strings.TrimSpace(os.Getenv("KEYWARDEN_SCRYPT_N")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KEYWARDEN_SCRYPT_N: %w", err)
		}
		cfg.Params.N = n
		cfg.Profile = "custom"
	}
	if v := strings.TrimSpace(os.Getenv("KEYWARDEN_SCRYPT_P")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KEYWARDEN_SCRYPT_P: %w", err)
		}
		cfg.Params.P = p
		cfg.Profile = "custom"
	}
	return nil
}

func applyProfile(cfg *Config, profile string) error {
	switch strings.ToLower(strings.TrimSpace(profile)) {
	case ProfileStandard:
		cfg.Profile = ProfileStandard
		cfg.Params = keyfile.StandardParams
	case ProfileLight:
		cfg.Profile = ProfileLight
		cfg.Params = keyfile.LightParams
	default:
		return fmt.Errorf("unknown crypto profile %q", profile)
	}
	return nil
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "keystore"
	}
	return filepath.Join(home, ".keywarden", "keystore")
}
