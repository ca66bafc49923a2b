// Package config loads hllctl's configuration, layering built-in defaults,
// an optional YAML file, and HLLCTL_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cardcount/hllsketch/hll"
)

// Sentinel validation errors.
var (
	ErrInvalidLgConfigK = errors.New("default lgConfigK out of range")
	ErrInvalidEncoding  = errors.New("default encoding must be one of hll4, hll6, hll8")
)

const (
	defaultLgConfigK = 12
	defaultEncoding  = "hll8"
	defaultLogLevel  = "info"
)

// Config holds all configuration for the hllctl CLI.
type Config struct {
	Sketch  SketchConfig  `mapstructure:"sketch"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SketchConfig holds the defaults applied when a command doesn't override
// lgConfigK or the target encoding on the command line.
type SketchConfig struct {
	LgConfigK int    `mapstructure:"lg_config_k"`
	Encoding  string `mapstructure:"encoding"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig holds the Prometheus metrics listener configuration.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load loads configuration from configPath (if non-empty), ./hllctl.yaml
// otherwise, and HLLCTL_-prefixed environment variables, in that order of
// increasing precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hllctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hllctl")
	}

	v.SetEnvPrefix("HLLCTL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sketch.lg_config_k", defaultLgConfigK)
	v.SetDefault("sketch.encoding", defaultEncoding)
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("metrics.listen_addr", "")
}

func validate(cfg *Config) error {
	if cfg.Sketch.LgConfigK < 4 || cfg.Sketch.LgConfigK > 21 {
		return fmt.Errorf("%w: %d", ErrInvalidLgConfigK, cfg.Sketch.LgConfigK)
	}
	if _, err := ParseEncoding(cfg.Sketch.Encoding); err != nil {
		return err
	}
	return nil
}

// ParseEncoding maps a CLI/config encoding name to an hll.Encoding.
func ParseEncoding(name string) (hll.Encoding, error) {
	switch strings.ToLower(name) {
	case "hll4":
		return hll.EncodingHll4, nil
	case "hll6":
		return hll.EncodingHll6, nil
	case "hll8":
		return hll.EncodingHll8, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidEncoding, name)
	}
}
