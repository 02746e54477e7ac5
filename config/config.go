// Package config loads the tool's configuration from a TOML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sudokoi/expense-buddy-sub002/github"
)

// Config holds application configuration.
type Config struct {
	// DataDir holds the local replica and the sync state files.
	DataDir string       `mapstructure:"data_dir"`
	Remote  RemoteConfig `mapstructure:"remote"`
	Sync    SyncConfig   `mapstructure:"sync"`
}

// RemoteConfig identifies the repository hosting the ledger.
type RemoteConfig struct {
	APIBase string `mapstructure:"api_base"`
	// Repo is the "owner/name" pair.
	Repo string `mapstructure:"repo"`
	// Branch empty means the repository's default branch.
	Branch string `mapstructure:"branch"`
	Token  string `mapstructure:"token"`
}

// SyncConfig tunes merge and fetch behavior.
type SyncConfig struct {
	ConflictThreshold time.Duration `mapstructure:"conflict_threshold"`
	WindowDays        int           `mapstructure:"window_days"`
	Settings          bool          `mapstructure:"settings"`
}

// DefaultPath returns the location the config file is searched at.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "expense-buddy", "config.toml")
}

// Load reads configuration from path and the environment. Env var overrides
// use prefix XB_ (XB_REMOTE_TOKEN, XB_SYNC_WINDOW_DAYS, …). An empty path
// searches ~/.config/expense-buddy/config.toml and tolerates its absence; an
// explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("data_dir", filepath.Join(os.Getenv("HOME"), ".expense-buddy"))
	v.SetDefault("remote.api_base", github.DefaultAPIBase)
	v.SetDefault("remote.repo", "")
	v.SetDefault("remote.branch", "")
	v.SetDefault("remote.token", "")
	v.SetDefault("sync.conflict_threshold", time.Minute)
	v.SetDefault("sync.window_days", 90)
	v.SetDefault("sync.settings", true)

	v.SetConfigType("toml")

	v.SetEnvPrefix("XB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("cannot read config %q: %w", path, err)
		}
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "expense-buddy"))
		v.SetConfigName("config")
		_ = v.ReadInConfig() // the file is optional
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Remote.Token == "" {
		c.Remote.Token = os.Getenv("GITHUB_TOKEN")
	}
	return c, nil
}

// HashStorePath returns the file remembering last-synced content hashes.
func (c Config) HashStorePath() string {
	return filepath.Join(c.DataDir, "sync", "hashes.json")
}

// TrackerPath returns the file remembering not-yet-synced record ids.
func (c Config) TrackerPath() string {
	return filepath.Join(c.DataDir, "sync", "pending.json")
}

// ValidateRemote checks the fields the sync commands need.
func (c Config) ValidateRemote() error {
	if c.Remote.Repo == "" {
		return fmt.Errorf("remote.repo is not configured (set it in %s or XB_REMOTE_REPO)", DefaultPath())
	}
	return nil
}

// Save writes cfg to path, creating folders as needed. The token lands in
// plain text; prefer the XB_REMOTE_TOKEN or GITHUB_TOKEN env vars and an
// empty remote.token.
func Save(cfg Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config folder: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("data_dir", cfg.DataDir)
	v.Set("remote.api_base", cfg.Remote.APIBase)
	v.Set("remote.repo", cfg.Remote.Repo)
	v.Set("remote.branch", cfg.Remote.Branch)
	v.Set("remote.token", cfg.Remote.Token)
	v.Set("sync.conflict_threshold", cfg.Sync.ConflictThreshold.String())
	v.Set("sync.window_days", cfg.Sync.WindowDays)
	v.Set("sync.settings", cfg.Sync.Settings)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("cannot write config %q: %w", path, err)
	}
	return nil
}
