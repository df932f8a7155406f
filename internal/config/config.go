package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"perpetcal/internal/convert"
	"perpetcal/internal/ics"
	appLog "perpetcal/internal/log"
	"perpetcal/internal/model"
	"perpetcal/internal/rank"
	"perpetcal/internal/tz"
)

const (
	DefaultListen         = "127.0.0.1:8080"
	DefaultTimeoutSeconds = 15
)

// Defaults apply to requests that leave a field empty.
type Defaults struct {
	// DTFmt is the strftime-style pattern used when a request has none.
	DTFmt string `yaml:"dtfmt" json:"dtfmt"`
	// Placeholder replaces a missing SUMMARY.
	Placeholder string `yaml:"placeholder" json:"placeholder"`
}

type Ranking struct {
	// LimitMode is "inclusive" (limit N yields N+1 items) or "exact".
	LimitMode string `yaml:"limit_mode" json:"limit_mode"`
}

// Fetch configures the outbound feed client.
type Fetch struct {
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	Retries        int    `yaml:"retries" json:"retries"`
	UserAgent      string `yaml:"user_agent" json:"user_agent"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes" json:"max_body_bytes"`
}

type Probe struct {
	// Schedule is a standard five-field cron expression. Empty disables
	// preset probes.
	Schedule string `yaml:"schedule" json:"schedule"`
}

// Preset is a named, pre-filled request.
type Preset struct {
	Name          string `yaml:"name" json:"name"`
	model.Request `yaml:",inline"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Defaults Defaults `yaml:"defaults" json:"defaults"`
	Ranking  Ranking  `yaml:"ranking" json:"ranking"`
	Fetch    Fetch    `yaml:"fetch" json:"fetch"`
	Probe    Probe    `yaml:"probe" json:"probe"`

	Presets []Preset `yaml:"presets" json:"presets"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   DefaultListen,
		LogLevel: string(appLog.LevelInfo),
		Defaults: Defaults{
			DTFmt:       convert.DefaultPattern,
			Placeholder: ics.DefaultPlaceholder,
		},
		Ranking: Ranking{LimitMode: string(rank.LimitInclusive)},
		Fetch: Fetch{
			TimeoutSeconds: DefaultTimeoutSeconds,
			Retries:        0,
			UserAgent:      ics.DefaultUserAgent,
			MaxBodyBytes:   ics.DefaultMaxBodyBytes,
		},
		Presets: []Preset{},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = string(appLog.LevelInfo)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.Defaults.DTFmt == "" {
		c.Defaults.DTFmt = convert.DefaultPattern
	}
	if c.Defaults.Placeholder == "" {
		c.Defaults.Placeholder = ics.DefaultPlaceholder
	}
	if c.Ranking.LimitMode == "" {
		c.Ranking.LimitMode = string(rank.LimitInclusive)
	}
	c.Ranking.LimitMode = strings.ToLower(strings.TrimSpace(c.Ranking.LimitMode))
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Fetch.Retries < 0 {
		c.Fetch.Retries = 0
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = ics.DefaultUserAgent
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		c.Fetch.MaxBodyBytes = ics.DefaultMaxBodyBytes
	}
	c.Probe.Schedule = strings.TrimSpace(c.Probe.Schedule)
	if c.Presets == nil {
		c.Presets = []Preset{}
	}
}

// Validate reports every problem in c at once. Call Normalize first.
func (c *Config) Validate() error {
	var errs []error

	if _, err := appLog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := rank.ParseLimitMode(c.Ranking.LimitMode); err != nil {
		errs = append(errs, fmt.Errorf("ranking.limit_mode: %w", err))
	}
	if c.Probe.Schedule != "" {
		if _, err := cron.ParseStandard(c.Probe.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("probe.schedule %q: %w", c.Probe.Schedule, err))
		}
	}

	seen := make(map[string]bool, len(c.Presets))
	for i, p := range c.Presets {
		where := fmt.Sprintf("presets[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is empty", where))
		} else if seen[p.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate name %q", where, p.Name))
		}
		seen[p.Name] = true
		if p.Feed == "" {
			errs = append(errs, fmt.Errorf("%s: feed is empty", where))
		}
		if _, err := tz.Resolve(p.TZID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}

	return errors.Join(errs...)
}

// Preset returns the preset with the given name.
func (c *Config) Preset(name string) (Preset, bool) {
	for _, p := range c.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 permissions and returned.
//   - Otherwise the YAML is read, normalized and validated.
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
			appLog.Info("default config written", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".perpetcal-config-*.tmp")
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
