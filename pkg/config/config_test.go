package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Sandbox.ProjectRoot != "/project" || cfg.Store.Backend != StoreMemory {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Remote.Attempts != Default().Remote.Attempts {
		t.Fatalf("attempts = %d", cfg.Remote.Attempts)
	}
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "sandgit.toml",
			content: `
[sandbox]
project_root = "/work"

[store]
backend = "sqlite"
path = "/var/lib/sandgit.db"

[remote]
timeout = "5s"
attempts = 2

[log]
level = "debug"
`,
		},
		{
			name: "yaml",
			file: "sandgit.yaml",
			content: `
sandbox:
  project_root: /work
store:
  backend: sqlite
  path: /var/lib/sandgit.db
remote:
  timeout: 5s
  attempts: 2
log:
  level: debug
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if cfg.Sandbox.ProjectRoot != "/work" {
				t.Fatalf("project root = %q", cfg.Sandbox.ProjectRoot)
			}
			// Unset keys keep their defaults.
			if cfg.Sandbox.ScratchRoot != "/tmp" {
				t.Fatalf("scratch root = %q", cfg.Sandbox.ScratchRoot)
			}
			if cfg.Store.Backend != StoreSQLite || cfg.Store.Path != "/var/lib/sandgit.db" {
				t.Fatalf("store = %+v", cfg.Store)
			}
			if cfg.Remote.Timeout != 5*time.Second || cfg.Remote.Attempts != 2 {
				t.Fatalf("remote = %+v", cfg.Remote)
			}
			if lvl, _ := cfg.LogLevel(); lvl.String() != "DEBUG" {
				t.Fatalf("log level = %v", lvl)
			}
		})
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandgit.ini")
	if err := os.WriteFile(path, []byte("x=1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted an .ini file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SANDGIT_PROJECT_ROOT":   "/repo",
		"SANDGIT_STORE":          "dir:/data",
		"SANDGIT_LOG_LEVEL":      "warn",
		"SANDGIT_REMOTE_TIMEOUT": "1m",
		"GIT_AUTHOR_NAME":        "Env User",
		"GIT_AUTHOR_EMAIL":       "env@example.com",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Sandbox.ProjectRoot != "/repo" || cfg.Store.Backend != StoreDir || cfg.Store.Path != "/data" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Remote.Timeout != time.Minute || cfg.Log.Level != "warn" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if got := cfg.Identity(); got != "Env User <env@example.com>" {
		t.Fatalf("Identity = %q", got)
	}

	env["SANDGIT_REMOTE_TIMEOUT"] = "soon"
	if err := Default().ApplyEnv(lookup); err == nil {
		t.Fatal("ApplyEnv accepted a bad duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative project root", func(c *Config) { c.Sandbox.ProjectRoot = "project" }, "project_root"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "s3" }, "unknown store backend"},
		{"dir without path", func(c *Config) { c.Store.Backend = StoreDir }, "store.path"},
		{"zero attempts", func(c *Config) { c.Remote.Attempts = 0 }, "remote.attempts"},
		{"zero merge steps", func(c *Config) { c.Merge.MaxSteps = 0 }, "merge.max_steps"},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.User.Name = "Round Trip"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back := &Config{}
	if err := Decode(".toml", data, back); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.User.Name != "Round Trip" || back.Remote.Timeout != cfg.Remote.Timeout {
		t.Fatalf("round trip = %+v", back)
	}
}
