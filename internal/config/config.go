package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"glyphsweep/internal/glyphs"
)

const (
	MatcherFixed = "fixed"
	MatcherEmoji = "emoji"
)

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"` // 0 disables the metrics server
}

type LoggingCfg struct {
	File         string `yaml:"file" json:"file"`                   // Optional log file in addition to stderr
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

type Config struct {
	Root              string        `yaml:"root" json:"root"`
	IncludePatterns   []string      `yaml:"include_patterns" json:"include_patterns"`
	ExcludeDirs       []string      `yaml:"exclude_dirs" json:"exclude_dirs"`
	ProtectedPaths    []string      `yaml:"protected_paths" json:"protected_paths"` // Never rewritten, added to the system defaults
	Targets           []string      `yaml:"targets" json:"targets"`
	Matcher           string        `yaml:"matcher" json:"matcher"` // fixed or emoji
	DryRun            bool          `yaml:"dry_run" json:"dry_run"`
	IntervalMinutes   int           `yaml:"interval_minutes" json:"interval_minutes"`         // Watch mode re-run interval
	MaxFilesPerSecond float64       `yaml:"max_files_per_second" json:"max_files_per_second"` // 0 = unthrottled
	StatTimeout       int           `yaml:"stat_timeout_seconds" json:"stat_timeout_seconds"` // Timeout for the root stat probe
	DatabasePath      string        `yaml:"database_path" json:"database_path"`               // SQLite rewrite history, empty disables
	Prometheus        PrometheusCfg `yaml:"prometheus" json:"prometheus"`
	Logging           LoggingCfg    `yaml:"logging" json:"logging"`
}

var (
	errNoPatterns      = errors.New("configuration must specify include_patterns")
	errInvalidPattern  = errors.New("invalid include pattern")
	errEmptyExclude    = errors.New("exclude_dirs entries must be non-empty directory names")
	errUnknownMatcher  = errors.New("matcher must be \"fixed\" or \"emoji\"")
	errInvalidInterval = errors.New("interval_minutes cannot be negative")
	errInvalidRate     = errors.New("max_files_per_second cannot be negative")
	errRelativeProtect = errors.New("protected_paths entries must be absolute")
)

// DefaultIncludePatterns selects Markdown and shell files anywhere under root.
func DefaultIncludePatterns() []string {
	return []string{"**/*.md", "**/*.sh"}
}

// DefaultExcludeDirs names dependency caches, build output and VCS metadata.
func DefaultExcludeDirs() []string {
	return []string{"node_modules", ".next", ".git", "dist", "build"}
}

// Default returns a validated configuration for sweeping the working directory.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.validateAndDefault()
	return cfg
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate re-applies defaults and checks the configuration, e.g. after flag overrides.
func (c *Config) Validate() error {
	return c.validateAndDefault()
}

func (c *Config) validateAndDefault() error {
	if c.Root == "" {
		c.Root = "."
	}
	c.Root = filepath.Clean(c.Root)

	if c.IncludePatterns == nil {
		c.IncludePatterns = DefaultIncludePatterns()
	}
	if len(c.IncludePatterns) == 0 {
		return errNoPatterns
	}
	for _, p := range c.IncludePatterns {
		if p == "" {
			return fmt.Errorf("%w: empty pattern", errInvalidPattern)
		}
		if _, err := glob.Compile(p, '/'); err != nil {
			return fmt.Errorf("%w %q: %v", errInvalidPattern, p, err)
		}
	}

	if c.ExcludeDirs == nil {
		c.ExcludeDirs = DefaultExcludeDirs()
	}
	for _, d := range c.ExcludeDirs {
		if d == "" || d != filepath.Base(d) {
			return fmt.Errorf("%w: %q", errEmptyExclude, d)
		}
	}

	for i, p := range c.ProtectedPaths {
		if !filepath.IsAbs(p) {
			return fmt.Errorf("%w: %q", errRelativeProtect, p)
		}
		c.ProtectedPaths[i] = filepath.Clean(p)
	}

	if c.Matcher == "" {
		c.Matcher = MatcherFixed
	}
	if c.Matcher != MatcherFixed && c.Matcher != MatcherEmoji {
		return errUnknownMatcher
	}

	if len(c.Targets) == 0 {
		c.Targets = glyphs.DefaultTargets()
	}
	if _, err := glyphs.NewSet(c.Targets); err != nil {
		return fmt.Errorf("targets: %w", err)
	}

	if c.IntervalMinutes < 0 {
		return errInvalidInterval
	}
	if c.IntervalMinutes == 0 {
		c.IntervalMinutes = 15
	}

	if c.MaxFilesPerSecond < 0 {
		return errInvalidRate
	}

	if c.StatTimeout <= 0 {
		c.StatTimeout = 5 // Default: 5 seconds for the root probe
	}

	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}

	return nil
}

// NewMatcher builds the glyph matcher selected by the configuration.
func (c *Config) NewMatcher() (glyphs.Matcher, error) {
	if c.Matcher == MatcherEmoji {
		return glyphs.NewEmojiMatcher(), nil
	}
	return glyphs.NewSet(c.Targets)
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *Config) StatTimeoutDuration() time.Duration {
	return time.Duration(c.StatTimeout) * time.Second
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}
