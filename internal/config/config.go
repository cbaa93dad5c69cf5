// Package config handles loading and validating the cadence configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the cadence daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	SSML       SSMLConfig       `mapstructure:"ssml"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`

	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// SSMLConfig tunes the markup builder. Zero values keep the built-in rules.
type SSMLConfig struct {
	// RulesFile is an optional YAML overlay merged over the built-in rule set.
	RulesFile string `mapstructure:"rules_file"`

	Language           string  `mapstructure:"language"`
	WordsPerSecond     float64 `mapstructure:"words_per_second"`
	DefaultMaxDuration float64 `mapstructure:"default_max_duration"`

	// Brand is an acronym-like name that is spoken as a word, never spelled.
	Brand string `mapstructure:"brand"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Backend string      `mapstructure:"backend"` // "piper"
	Piper   PiperConfig `mapstructure:"piper"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance set Endpoint. Endpoints maps ISO-639-1 codes to
// per-language instances and takes precedence; Endpoint is the fallback.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`  // host:port
	Endpoints map[string]string `mapstructure:"endpoints"` // ISO-639-1 language code -> host:port
	Voices    map[string]string `mapstructure:"voices"`    // ISO-639-1 language code -> Piper voice model name
	Timeout   string            `mapstructure:"timeout"`   // e.g. "30s"
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./cadence.yaml, ./configs/cadence.yaml, /etc/cadence/cadence.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cadence")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/cadence")
	}

	// Environment variables: CADENCE_SERVER_HEALTH_PORT, CADENCE_SSML_RULES_FILE, etc.
	v.SetEnvPrefix("CADENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional; env vars and defaults are sufficient.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return decode(v)
}

// Parse reads configuration from r in the given format ("yaml", "json")
// on top of the defaults. Environment variables are not consulted.
func Parse(r io.Reader, format string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.max_body_bytes", 1<<20)
	v.SetDefault("ssml.rules_file", "")
	v.SetDefault("ssml.language", "")
	v.SetDefault("ssml.words_per_second", 0)
	v.SetDefault("ssml.default_max_duration", 0)
	v.SetDefault("ssml.brand", "")
	v.SetDefault("tts.enabled", false)
	v.SetDefault("tts.backend", "piper")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.piper.timeout", "30s")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references such as "${RULES_PATH}".
	cfg.SSML.RulesFile = resolveEnvRef(cfg.SSML.RulesFile)
	cfg.TTS.Piper.Endpoint = resolveEnvRef(cfg.TTS.Piper.Endpoint)
	for lang, ep := range cfg.TTS.Piper.Endpoints {
		cfg.TTS.Piper.Endpoints[lang] = resolveEnvRef(ep)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that would prevent the daemon from starting.
func (c *Config) Validate() error {
	var errs []error
	if c.Transports.GRPC.Enabled && !validPort(c.Transports.GRPC.Port) {
		errs = append(errs, fmt.Errorf("transports.grpc.port: invalid port %d", c.Transports.GRPC.Port))
	}
	if c.Transports.HTTP.Enabled && !validPort(c.Transports.HTTP.Port) {
		errs = append(errs, fmt.Errorf("transports.http.port: invalid port %d", c.Transports.HTTP.Port))
	}
	if !validPort(c.Server.HealthPort) {
		errs = append(errs, fmt.Errorf("server.health_port: invalid port %d", c.Server.HealthPort))
	}
	if c.SSML.WordsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("ssml.words_per_second: must not be negative"))
	}
	if c.SSML.DefaultMaxDuration < 0 {
		errs = append(errs, fmt.Errorf("ssml.default_max_duration: must not be negative"))
	}
	if c.TTS.Enabled && c.TTS.Backend != "piper" {
		errs = append(errs, fmt.Errorf("tts.backend: unknown backend %q", c.TTS.Backend))
	}
	return errors.Join(errs...)
}

func validPort(p int) bool { return p > 0 && p < 65536 }

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config. A nil w
// logs to stdout.
func SetupLogging(cfg LoggingConfig, w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(NewLogger(cfg, w))
}

// NewLogger builds a JSON or text logger writing to w.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}
