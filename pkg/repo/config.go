package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/odvcencio/twig/pkg/lockfile"
)

// Config is the repository-local configuration stored as TOML in the
// store directory.
type Config struct {
	Core CoreConfig  `toml:"core"`
	User *UserConfig `toml:"user,omitempty"`
}

type CoreConfig struct {
	RepositoryFormatVersion int  `toml:"repositoryformatversion"`
	FileMode                bool `toml:"filemode"`
	Bare                    bool `toml:"bare"`
	LogAllRefUpdates        bool `toml:"logallrefupdates"`
}

// UserConfig supplies the default commit identity.
type UserConfig struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

// DefaultConfig is the configuration written by Create.
func DefaultConfig() *Config {
	return &Config{Core: CoreConfig{FileMode: true, LogAllRefUpdates: true}}
}

// Identity formats the configured user as "Name <email>". It returns ""
// when no user name is configured.
func (c *Config) Identity() string {
	if c == nil || c.User == nil || strings.TrimSpace(c.User.Name) == "" {
		return ""
	}
	return fmt.Sprintf("%s <%s>", strings.TrimSpace(c.User.Name), strings.TrimSpace(c.User.Email))
}

func (r *Repo) configPath() string {
	return filepath.Join(r.Dir, "config")
}

// ReadConfig reads the repository config. A missing file yields the default
// configuration.
func (r *Repo) ReadConfig() (*Config, error) {
	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// WriteConfig atomically replaces the repository config.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := lockfile.WriteFile(r.configPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
