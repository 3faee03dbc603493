package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"jtvview/internal/jtv"
)

// NOTE: Load creates the file with defaults on first run; Save writes
// atomically with 0600 permissions.

// BasicAuthConfig holds HTTP Basic Auth credentials for the web view/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for `jtvview serve`.
	Listen string `yaml:"listen" json:"listen"`

	// TimezoneOffset is the source files' time zone in seconds east of UTC,
	// range [-86400, 86400]. Nil follows the machine's current offset; read
	// it through Offset.
	TimezoneOffset *int `yaml:"timezone_offset,omitempty" json:"timezone_offset,omitempty"`

	// DateLayout and TimeLayout are Go time layouts for day headings and
	// entry times.
	DateLayout string `yaml:"date_layout" json:"date_layout"`
	TimeLayout string `yaml:"time_layout" json:"time_layout"`

	// RefreshCron is a cron-style schedule (e.g. "0 * * * *") on which the
	// server re-reads the open guides. Empty disables scheduled reloads.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ArchivePath is the SQLite database used by `export --format sqlite`
	// when no output path is given.
	ArchivePath string `yaml:"archive_path" json:"archive_path"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen     = "127.0.0.1:8080"
	defaultDateLayout = "Monday, 2 January 2006"
	defaultTimeLayout = "15:04"
	defaultRefresh    = "0 * * * *"
	defaultArchive    = "jtvview.db"
	defaultLogLevel   = "info"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		DateLayout:  defaultDateLayout,
		TimeLayout:  defaultTimeLayout,
		RefreshCron: defaultRefresh,
		ArchivePath: defaultArchive,
		LogLevel:    defaultLogLevel,
	}
}

// Offset returns the configured source offset, or the machine's offset at
// the time of the call when none is set.
func (c *Config) Offset() int {
	if c.TimezoneOffset == nil {
		return jtv.LocalOffsetSeconds()
	}
	return *c.TimezoneOffset
}

// SetOffset pins the source offset to seconds.
func (c *Config) SetOffset(seconds int) {
	c.TimezoneOffset = &seconds
}

// FollowLocalOffset clears a pinned offset so Offset tracks the machine.
func (c *Config) FollowLocalOffset() {
	c.TimezoneOffset = nil
}

// DefaultPath returns $XDG_CONFIG_HOME/jtvview/config.yaml or the
// platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "jtvview.yaml"
	}
	return filepath.Join(dir, "jtvview", "config.yaml")
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly. A zero offset is a valid
// value (UTC) and is left alone.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.DateLayout == "" {
		c.DateLayout = defaultDateLayout
	}
	if c.TimeLayout == "" {
		c.TimeLayout = defaultTimeLayout
	}
	if c.ArchivePath == "" {
		c.ArchivePath = defaultArchive
	}
	switch c.LogLevel {
	case "debug", "info", "error":
	default:
		c.LogLevel = defaultLogLevel
	}
}

// Validate rejects values that cannot be used as-is.
func (c *Config) Validate() error {
	if c.TimezoneOffset != nil {
		if err := jtv.ValidateOffset(*c.TimezoneOffset); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
		}
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "") != (c.BasicAuth.Password == "") {
		return errors.New("config: basic_auth needs both username and password")
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := Config{RefreshCron: defaultRefresh}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".jtvview-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
