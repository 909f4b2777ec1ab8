// Package config loads gdport configuration. GDPORT_* environment variables override the
// YAML config file, which overrides built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/gdport/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidWorkers     = errors.New("workers must not be negative")
	ErrInvalidSuffix      = errors.New("output suffix must be a non-empty file name fragment")
	ErrInvalidSize        = errors.New("invalid size")
	ErrInvalidLogFormat   = errors.New("log format must be text or json")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
)

const (
	maxPort   = 65535
	envPrefix = "GDPORT"
)

// Config holds all gdport configuration.
type Config struct {
	Convert       ConvertConfig       `mapstructure:"convert"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ConvertConfig holds conversion settings.
type ConvertConfig struct {
	Suffix      string `mapstructure:"suffix"`
	RulesFile   string `mapstructure:"rules_file"`
	OutputDir   string `mapstructure:"output_dir"`
	MaxFileSize string `mapstructure:"max_file_size"`
	Workers     int    `mapstructure:"workers"`
	Partial     bool   `mapstructure:"partial"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	MaxBodySize  string        `mapstructure:"max_body_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
}

// Addr returns host:port.
func (sc ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	Environment  string  `mapstructure:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration. An empty path searches ./gdport.yaml and
// $HOME/.config/gdport/gdport.yaml; a missing file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("gdport")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			viperCfg.AddConfigPath(filepath.Join(home, ".config", "gdport"))
		}
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("convert.suffix", DefaultSuffix)
	viperCfg.SetDefault("convert.partial", DefaultPartial)
	viperCfg.SetDefault("convert.workers", DefaultWorkers)
	viperCfg.SetDefault("convert.max_file_size", DefaultMaxFileSize)
	viperCfg.SetDefault("convert.rules_file", "")
	viperCfg.SetDefault("convert.output_dir", "")

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("server.host", DefaultHost)
	viperCfg.SetDefault("server.port", DefaultPort)
	viperCfg.SetDefault("server.read_timeout", DefaultReadTimeout)
	viperCfg.SetDefault("server.write_timeout", DefaultWriteTimeout)
	viperCfg.SetDefault("server.idle_timeout", DefaultIdleTimeout)
	viperCfg.SetDefault("server.max_body_size", DefaultMaxBodySize)

	viperCfg.SetDefault("observability.service_name", DefaultServiceName)
	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", DefaultSampleRatio)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Convert.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Convert.Workers)
	}

	if c.Convert.Suffix == "" || strings.ContainsAny(c.Convert.Suffix, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidSuffix, c.Convert.Suffix)
	}

	if _, err := ParseSize(c.Convert.MaxFileSize); err != nil {
		return fmt.Errorf("convert.max_file_size: %w", err)
	}

	if _, err := ParseSize(c.Server.MaxBodySize); err != nil {
		return fmt.Errorf("server.max_body_size: %w", err)
	}

	if _, err := observability.ParseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	switch strings.ToLower(c.Logging.Format) {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Observability.SampleRatio)
	}

	return nil
}

// ParseSize parses a human-readable size such as "4MiB" or "500kB". Empty and "0" mean no limit.
func ParseSize(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "0" {
		return 0, nil
	}

	parsed, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, value)
	}

	return int64(min(parsed, uint64(1<<62))), nil
}

// MaxFileSizeBytes returns the parsed convert.max_file_size.
func (cc ConvertConfig) MaxFileSizeBytes() int64 {
	size, err := ParseSize(cc.MaxFileSize)
	if err != nil {
		return 0
	}

	return size
}

// Telemetry builds the observability settings for the given mode.
func (c *Config) Telemetry(mode observability.AppMode, version string) observability.Config {
	level, err := observability.ParseLogLevel(c.Logging.Level)
	if err != nil {
		level = observability.DefaultConfig().LogLevel
	}

	cfg := observability.DefaultConfig()
	cfg.ServiceName = c.Observability.ServiceName
	cfg.ServiceVersion = version
	cfg.Environment = c.Observability.Environment
	cfg.Mode = mode
	cfg.OTLPEndpoint = c.Observability.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Observability.OTLPHeaders)
	cfg.OTLPInsecure = c.Observability.OTLPInsecure
	cfg.SampleRatio = c.Observability.SampleRatio
	cfg.LogLevel = level
	cfg.LogJSON = strings.EqualFold(c.Logging.Format, LogFormatJSON)

	return cfg
}
