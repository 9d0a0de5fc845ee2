// Package config loads process-level settings for sandgit from a TOML or
// YAML file, with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreDir    = "dir"
	StoreSQLite = "sqlite"
)

// Config is the top-level settings document.
type Config struct {
	Sandbox SandboxConfig `toml:"sandbox" yaml:"sandbox"`
	User    UserConfig    `toml:"user" yaml:"user"`
	Store   StoreConfig   `toml:"store" yaml:"store"`
	Remote  RemoteConfig  `toml:"remote" yaml:"remote"`
	Merge   MergeConfig   `toml:"merge" yaml:"merge"`
	Log     LogConfig     `toml:"log" yaml:"log"`
}

// SandboxConfig names the writable roots of the sandbox.
type SandboxConfig struct {
	ProjectRoot   string `toml:"project_root" yaml:"project_root"`
	ScratchRoot   string `toml:"scratch_root" yaml:"scratch_root"`
	DefaultBranch string `toml:"default_branch" yaml:"default_branch"`
}

// UserConfig is the identity used when a repository has none.
type UserConfig struct {
	Name  string `toml:"name" yaml:"name"`
	Email string `toml:"email" yaml:"email"`
}

// StoreConfig selects where the sandbox bytes live.
type StoreConfig struct {
	Backend  string `toml:"backend" yaml:"backend"`
	Path     string `toml:"path" yaml:"path"`
	Compress bool   `toml:"compress" yaml:"compress"`
}

type RemoteConfig struct {
	Timeout      time.Duration `toml:"timeout" yaml:"timeout"`
	Attempts     int           `toml:"attempts" yaml:"attempts"`
	RetryBackoff time.Duration `toml:"retry_backoff" yaml:"retry_backoff"`
	UserAgent    string        `toml:"user_agent" yaml:"user_agent"`
}

type MergeConfig struct {
	// MaxSteps bounds ancestry walks during merge-base search.
	MaxSteps int `toml:"max_steps" yaml:"max_steps"`
}

type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			ProjectRoot:   "/project",
			ScratchRoot:   "/tmp",
			DefaultBranch: "main",
		},
		Store: StoreConfig{Backend: StoreMemory},
		Remote: RemoteConfig{
			Timeout:      30 * time.Second,
			Attempts:     3,
			RetryBackoff: 200 * time.Millisecond,
			UserAgent:    "sandgit/0.1",
		},
		Merge: MergeConfig{MaxSteps: 100000},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// The format follows the extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(filepath.Ext(path), data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses data in the format named by ext into cfg.
func Decode(ext string, data []byte, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".toml", "toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml", "yaml", "yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return fmt.Errorf("config: unsupported format %q", ext)
	}
	return nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return nil, fmt.Errorf("encode TOML: %w", err)
	}
	return []byte(b.String()), nil
}

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SANDGIT_PROJECT_ROOT"); ok && v != "" {
		c.Sandbox.ProjectRoot = v
	}
	if v, ok := lookup("SANDGIT_SCRATCH_ROOT"); ok && v != "" {
		c.Sandbox.ScratchRoot = v
	}
	if v, ok := lookup("SANDGIT_STORE"); ok && v != "" {
		// "<backend>" or "<backend>:<path>"
		backend, path, hasPath := strings.Cut(v, ":")
		c.Store.Backend = backend
		if hasPath {
			c.Store.Path = path
		}
	}
	if v, ok := lookup("SANDGIT_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("SANDGIT_REMOTE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SANDGIT_REMOTE_TIMEOUT: %w", err)
		}
		c.Remote.Timeout = d
	}
	if v, ok := lookup("GIT_AUTHOR_NAME"); ok && v != "" {
		c.User.Name = v
	}
	if v, ok := lookup("GIT_AUTHOR_EMAIL"); ok && v != "" {
		c.User.Email = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	for name, root := range map[string]string{
		"sandbox.project_root": c.Sandbox.ProjectRoot,
		"sandbox.scratch_root": c.Sandbox.ScratchRoot,
	} {
		if !strings.HasPrefix(root, "/") {
			return fmt.Errorf("config: %s must be an absolute sandbox path, got %q", name, root)
		}
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreDir, StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("config: store.path is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("config: remote.timeout must not be negative")
	}
	if c.Remote.Attempts < 1 {
		return fmt.Errorf("config: remote.attempts must be at least 1")
	}
	if c.Merge.MaxSteps < 1 {
		return fmt.Errorf("config: merge.max_steps must be at least 1")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return lvl, nil
}

// Identity renders the configured user as "Name <email>", or "" when
// either part is missing.
func (c *Config) Identity() string {
	if c.User.Name == "" || c.User.Email == "" {
		return ""
	}
	return fmt.Sprintf("%s <%s>", c.User.Name, c.User.Email)
}
