// Package config loads the runtime configuration from defaults, the user's
// TOML file, and LUMA_* environment variables, in that precedence order.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/luma-launcher/luma/pkg/logger"
)

var (
	// ErrNegativeDuration is returned when a config duration is negative.
	ErrNegativeDuration = errors.New("duration must not be negative")

	// ErrInvalidLogLevel is returned when log.level is not a known level.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

const (
	// ConfigDir is the directory name under the user config root.
	ConfigDir = "luma"

	// ConfigFile is the name of the configuration file.
	ConfigFile = "config.toml"

	// EnvPrefix is the prefix of configuration environment variables.
	EnvPrefix = "LUMA_"
)

// Duration is a time.Duration that unmarshals from TOML strings like "150ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrap(err, "invalid duration")
	}

	if dur < 0 {
		return errors.Wrapf(ErrNegativeDuration, "got %s", dur)
	}

	*d = Duration(dur)

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ToDuration converts to a time.Duration.
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration.
type Config struct {
	// PluginPaths lists the directories scanned for plugin modules.
	PluginPaths []string `koanf:"plugin_paths" toml:"plugin_paths,omitempty"`

	// Locale overrides the locale used to resolve localized plugin
	// metadata. Empty picks the system locale.
	Locale string `koanf:"locale" toml:"locale,omitempty"`

	Log   LogConfig   `koanf:"log"   toml:"log,omitempty"`
	Query QueryConfig `koanf:"query" toml:"query,omitempty"`

	// Handlers holds per-handler overrides keyed by handler id.
	Handlers map[string]HandlerConfig `koanf:"handlers" toml:"handlers,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `koanf:"level" toml:"level,omitempty"`

	// File is the log destination. Empty logs to stderr.
	File string `koanf:"file" toml:"file,omitempty"`
}

// QueryConfig configures the query engine.
type QueryConfig struct {
	// HandlerDeadline bounds a single handler invocation. Zero disables
	// the deadline.
	HandlerDeadline Duration `koanf:"handler_deadline" toml:"handler_deadline,omitempty"`

	MaxCPUWorkers int `koanf:"max_cpu_workers" toml:"max_cpu_workers,omitempty"`
	MaxIOWorkers  int `koanf:"max_io_workers" toml:"max_io_workers,omitempty"`
}

// HandlerConfig is the persisted per-handler configuration.
type HandlerConfig struct {
	Trigger string `koanf:"trigger" toml:"trigger,omitempty"`
	Enabled *bool  `koanf:"enabled" toml:"enabled,omitempty"`
}

// Loader loads configuration with precedence defaults < file < environment.
type Loader struct {
	k          *koanf.Koanf
	configHome string
	dataHome   string
}

// NewLoader creates a loader rooted at the user's config and data
// directories.
func NewLoader() (*Loader, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user config directory")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get home directory")
	}

	return NewLoaderWithDirs(configHome, filepath.Join(homeDir, ".local", "share")), nil
}

// NewLoaderWithDirs creates a loader with custom directories (for testing).
func NewLoaderWithDirs(configHome, dataHome string) *Loader {
	return &Loader{
		k:          koanf.New("."),
		configHome: configHome,
		dataHome:   dataHome,
	}
}

// ConfigPath returns the path of the configuration file.
func (l *Loader) ConfigPath() string {
	return filepath.Join(l.configHome, ConfigDir, ConfigFile)
}

// Load loads and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	l.k = koanf.New(".")

	if err := l.k.Load(confmap.Provider(l.defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	path := l.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		if err := l.k.Load(file.Provider(path), tomlparser.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", path)
		}
	}

	envOpt := env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envTransform,
	}

	if err := l.k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	var cfg Config

	unmarshalConf := koanf.UnmarshalConf{Tag: "koanf", FlatPaths: false}
	if err := l.k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &cfg, nil
}

// defaults returns the built-in configuration as a koanf map.
func (l *Loader) defaults() map[string]any {
	return map[string]any{
		"plugin_paths": []string{filepath.Join(l.dataHome, ConfigDir, "plugins")},
		"locale":       "",
		"log": map[string]any{
			"level": string(logger.LevelInfo),
			"file":  "",
		},
		"query": map[string]any{
			"handler_deadline": "0s",
			"max_cpu_workers":  0,
			"max_io_workers":   0,
		},
		"handlers": map[string]any{},
	}
}

// envTransform maps environment variable names to config paths.
// LUMA_QUERY_HANDLER_DEADLINE becomes query.handler_deadline.
func envTransform(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "_", ".")

	// The keys below contain underscores that must survive the dot
	// rewrite.
	replacements := []struct{ from, to string }{
		{"plugin.paths", "plugin_paths"},
		{"handler.deadline", "handler_deadline"},
		{"max.cpu.workers", "max_cpu_workers"},
		{"max.io.workers", "max_io_workers"},
	}

	for _, r := range replacements {
		key = strings.ReplaceAll(key, r.from, r.to)
	}

	return key, value
}

func validate(cfg *Config) error {
	switch strings.ToUpper(strings.TrimSpace(cfg.Log.Level)) {
	case "", string(logger.LevelDebug), string(logger.LevelInfo), string(logger.LevelError):
	default:
		return errors.Wrapf(ErrInvalidLogLevel, "%q", cfg.Log.Level)
	}

	if cfg.Query.HandlerDeadline < 0 {
		return errors.Wrapf(ErrNegativeDuration, "query.handler_deadline is %s", cfg.Query.HandlerDeadline.ToDuration())
	}

	return nil
}
