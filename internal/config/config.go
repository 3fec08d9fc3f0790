// Package config loads dcg settings from defaults, an optional YAML file and
// DCG_* environment variables, and builds the process logger.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/artpar/dcg/internal/core/domain"
)

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix is prepended to every environment override, e.g. DCG_LOG_LEVEL.
const EnvPrefix = "DCG"

const (
	registryFile = "settings.yaml"
	historyFile  = "history.db"
	configFile   = "config.yaml"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	// Home is the dcg state directory. Registry and history live here unless
	// configured elsewhere.
	Home     string         `mapstructure:"home"`
	Registry RegistryConfig `mapstructure:"registry"`
	History  HistoryConfig  `mapstructure:"history"`
	Docker   DockerConfig   `mapstructure:"docker"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Watch    WatchConfig    `mapstructure:"watch"`

	// File is the config file that was read, empty when none was.
	File string `mapstructure:"-"`
}

// RegistryConfig locates the deployment registry.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// HistoryConfig controls the SQLite action history.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host   string `mapstructure:"host"`
	Binary string `mapstructure:"binary"` // executable providing "compose"
}

// EngineConfig tunes the deployment manager.
type EngineConfig struct {
	MaxParallel int `mapstructure:"max_parallel"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration for "dcg serve".
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WatchConfig controls the background status watcher.
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// =============================================================================
// Config Loading
// =============================================================================

// DefaultHome returns ~/.dcg, or .dcg when the home directory is unknown.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dcg"
	}
	return filepath.Join(home, ".dcg")
}

// Load reads configuration. An empty configPath falls back to
// <home>/config.yaml when that file exists.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("home", DefaultHome())
	v.SetDefault("registry.path", "")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dsn", "")
	v.SetDefault("docker.host", "")
	v.SetDefault("docker.binary", "docker")
	v.SetDefault("engine.max_parallel", 4)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("watch.interval", "30s")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		candidate := filepath.Join(expandHome(v.GetString("home")), configFile)
		if _, err := os.Stat(candidate); err == nil {
			configPath = candidate
		}
	}

	var used string
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// A missing file leaves the defaults in place.
		} else {
			used = configPath
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = used

	cfg.Home = expandHome(cfg.Home)
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = filepath.Join(cfg.Home, registryFile)
	} else {
		cfg.Registry.Path = expandHome(cfg.Registry.Path)
	}
	if cfg.History.DSN == "" {
		cfg.History.DSN = filepath.Join(cfg.Home, historyFile)
	} else if cfg.History.DSN != ":memory:" {
		cfg.History.DSN = expandHome(cfg.History.DSN)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Engine.MaxParallel < 1 {
		return fmt.Errorf("%w: engine.max_parallel must be at least 1, got %d", ErrInvalidConfig, c.Engine.MaxParallel)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be between 1 and 65535, got %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("%w: watch.interval must be positive", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Docker.Binary) == "" {
		return fmt.Errorf("%w: docker.binary is empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	expanded, err := domain.NormalizePath(path)
	if err != nil {
		return path
	}
	return expanded
}

// =============================================================================
// Logger Setup
// =============================================================================

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger creates a logger with the configured level and format.
// Command output goes to stdout, so logs are written to w (normally stderr).
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Log.Level),
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	routeLogrus(logger)
	return logger
}

// routeLogrus sends messages logged through logrus by compose-go to logger,
// so log.level and log.format apply to them. compose-go reports on files dcg
// only reads, so each message is lowered one level.
func routeLogrus(logger *slog.Logger) {
	std := logrus.StandardLogger()
	std.SetOutput(io.Discard)
	std.SetLevel(logrus.DebugLevel)
	std.ReplaceHooks(make(logrus.LevelHooks))
	std.AddHook(&logrusHook{logger: logger.With("component", "compose-go")})
}

type logrusHook struct {
	logger *slog.Logger
}

func (h *logrusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *logrusHook) Fire(e *logrus.Entry) error {
	var level slog.Level
	switch e.Level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		level = slog.LevelWarn
	case logrus.WarnLevel:
		level = slog.LevelInfo
	default:
		level = slog.LevelDebug
	}

	attrs := make([]any, 0, 2*len(e.Data))
	for k, v := range e.Data {
		attrs = append(attrs, k, v)
	}
	h.logger.Log(context.Background(), level, e.Message, attrs...)
	return nil
}
