package repo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

const configFile = "config.toml"

// Config stores repository-local settings in .git/config.toml.
type Config struct {
	Core     CoreConfig              `toml:"core"`
	User     UserConfig              `toml:"user"`
	Remotes  map[string]RemoteConfig `toml:"remote,omitempty"`
	Branches map[string]BranchConfig `toml:"branch,omitempty"`
}

type CoreConfig struct {
	DefaultBranch string `toml:"default_branch,omitempty"`
}

type UserConfig struct {
	Name       string `toml:"name,omitempty"`
	Email      string `toml:"email,omitempty"`
	SigningKey string `toml:"signing_key,omitempty"`
}

type RemoteConfig struct {
	URL string `toml:"url"`
}

// BranchConfig records the upstream a local branch tracks.
type BranchConfig struct {
	Remote string `toml:"remote,omitempty"`
	Merge  string `toml:"merge,omitempty"`
}

// RemoteDescriptor names a configured remote. Credentials are never part of
// repository state; they are looked up per call.
type RemoteDescriptor struct {
	Name string
	URL  string
}

// ReadConfig reads .git/config.toml. A missing file yields an empty config.
func (r *Repo) ReadConfig() (*Config, error) {
	cfg := &Config{}
	data, err := r.FS.ReadFile(r.gitPath(configFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("read config: decode: %w", err)
		}
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]RemoteConfig)
	}
	if cfg.Branches == nil {
		cfg.Branches = make(map[string]BranchConfig)
	}
	return cfg, nil
}

// WriteConfig writes .git/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := r.FS.WriteFile(r.gitPath(configFile), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (r *Repo) updateConfig(fn func(*Config) error) error {
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return r.WriteConfig(cfg)
}

// GetConfig reads a dotted key such as "user.name" or "remote.origin.url".
// The boolean is false when the key is unset.
func (r *Repo) GetConfig(key string) (string, bool, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", false, err
	}
	v, err := configField(cfg, key, nil)
	if err != nil {
		return "", false, err
	}
	return v, v != "", nil
}

// SetConfig sets a dotted key.
func (r *Repo) SetConfig(key, value string) error {
	return r.updateConfig(func(cfg *Config) error {
		_, err := configField(cfg, key, &value)
		return err
	})
}

func configField(cfg *Config, key string, set *string) (string, error) {
	parts := strings.Split(key, ".")
	field := func(p *string) string {
		if set != nil {
			*p = *set
		}
		return *p
	}
	switch {
	case len(parts) == 2 && parts[0] == "user":
		switch parts[1] {
		case "name":
			return field(&cfg.User.Name), nil
		case "email":
			return field(&cfg.User.Email), nil
		case "signingkey", "signing_key":
			return field(&cfg.User.SigningKey), nil
		}
	case len(parts) == 2 && parts[0] == "core" && strings.EqualFold(parts[1], "defaultbranch"):
		return field(&cfg.Core.DefaultBranch), nil
	case len(parts) == 3 && parts[0] == "remote" && parts[2] == "url":
		rc := cfg.Remotes[parts[1]]
		v := field(&rc.URL)
		if set != nil {
			cfg.Remotes[parts[1]] = rc
		}
		return v, nil
	case len(parts) == 3 && parts[0] == "branch" && (parts[2] == "remote" || parts[2] == "merge"):
		bc := cfg.Branches[parts[1]]
		var v string
		if parts[2] == "remote" {
			v = field(&bc.Remote)
		} else {
			v = field(&bc.Merge)
		}
		if set != nil {
			cfg.Branches[parts[1]] = bc
		}
		return v, nil
	}
	return "", fmt.Errorf("config: unknown key %q", key)
}

// AddRemote registers a named remote.
func (r *Repo) AddRemote(name, url string) error {
	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if name == "" || url == "" {
		return fmt.Errorf("add remote: name and url are required")
	}
	if err := validateRefName("refs/remotes/" + name); err != nil || strings.Contains(name, "/") {
		return fmt.Errorf("add remote: %w: %q", ErrInvalidRefName, name)
	}
	return r.updateConfig(func(cfg *Config) error {
		if _, ok := cfg.Remotes[name]; ok {
			return fmt.Errorf("add remote %q: %w", name, ErrRemoteExists)
		}
		cfg.Remotes[name] = RemoteConfig{URL: url}
		return nil
	})
}

// RemoveRemote deletes a remote, its remote-tracking refs and any branch
// upstream settings that point at it.
func (r *Repo) RemoveRemote(name string) error {
	err := r.updateConfig(func(cfg *Config) error {
		if _, ok := cfg.Remotes[name]; !ok {
			return fmt.Errorf("remove remote %q: %w", name, ErrRemoteNotFound)
		}
		delete(cfg.Remotes, name)
		for b, bc := range cfg.Branches {
			if bc.Remote == name {
				delete(cfg.Branches, b)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := r.FS.RemoveAll(r.gitPath("refs/remotes/" + name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove remote %q: %w", name, err)
	}
	return nil
}

// Remote returns the descriptor of a configured remote.
func (r *Repo) Remote(name string) (RemoteDescriptor, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return RemoteDescriptor{}, err
	}
	rc, ok := cfg.Remotes[name]
	if !ok || rc.URL == "" {
		return RemoteDescriptor{}, fmt.Errorf("remote %q: %w", name, ErrRemoteNotFound)
	}
	return RemoteDescriptor{Name: name, URL: rc.URL}, nil
}

// Remotes lists configured remotes sorted by name.
func (r *Repo) Remotes() ([]RemoteDescriptor, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return nil, err
	}
	out := make([]RemoteDescriptor, 0, len(cfg.Remotes))
	for name, rc := range cfg.Remotes {
		out = append(out, RemoteDescriptor{Name: name, URL: rc.URL})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// reflogIdentity returns "Name <email>" from config, falling back to the
// configured identity and then a placeholder.
func (r *Repo) reflogIdentity() string {
	cfg, err := r.ReadConfig()
	if err != nil || cfg.User.Name == "" {
		if r.identity != "" {
			return r.identity
		}
		return "sandgit <sandgit@localhost>"
	}
	return FormatIdentity(cfg.User.Name, cfg.User.Email)
}

// FormatIdentity renders a git identity string.
func FormatIdentity(name, email string) string {
	return fmt.Sprintf("%s <%s>", strings.TrimSpace(name), strings.TrimSpace(email))
}
