package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/raaihank/sparkify-lake/internal/storage"
)

// ErrMissingCredentials is returned when an object-storage root is
// configured without both credential keys.
var ErrMissingCredentials = errors.New("missing storage credentials")

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, GetDefaults())

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("$HOME/.sparkify/")

	// Environment variable overrides
	v.SetEnvPrefix("SPARKIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("keys.aws_access_key_id", "SPARKIFY_KEYS_AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("keys.aws_secret_access_key", "SPARKIFY_KEYS_AWS_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults registers every key so environment overrides are seen by
// Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("keys.aws_access_key_id", d.Keys.AWSAccessKeyID)
	v.SetDefault("keys.aws_secret_access_key", d.Keys.AWSSecretAccessKey)
	v.SetDefault("paths.input_data", d.Paths.InputData)
	v.SetDefault("paths.output_data", d.Paths.OutputData)
	v.SetDefault("storage.region", d.Storage.Region)
	v.SetDefault("storage.endpoint", d.Storage.Endpoint)
	v.SetDefault("storage.force_path_style", d.Storage.ForcePathStyle)
	v.SetDefault("storage.requests_per_second", d.Storage.RequestsPerSecond)
	v.SetDefault("output.compression", d.Output.Compression)
	v.SetDefault("output.max_rows_per_file", d.Output.MaxRowsPerFile)
	v.SetDefault("transform.start_time_precision", d.Transform.StartTimePrecision)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file.enabled", d.Logging.File.Enabled)
	v.SetDefault("logging.file.path", d.Logging.File.Path)
}

// Validate validates the loaded configuration
func Validate(config *Config) error {
	if config.Paths.InputData == "" {
		return errors.New("paths.input_data is required")
	}
	if config.Paths.OutputData == "" {
		return errors.New("paths.output_data is required")
	}

	if storage.IsObjectStorage(config.Paths.InputData) || storage.IsObjectStorage(config.Paths.OutputData) {
		if config.Keys.AWSAccessKeyID == "" {
			return fmt.Errorf("%w: keys.aws_access_key_id", ErrMissingCredentials)
		}
		if config.Keys.AWSSecretAccessKey == "" {
			return fmt.Errorf("%w: keys.aws_secret_access_key", ErrMissingCredentials)
		}
	}

	switch strings.ToLower(config.Output.Compression) {
	case "snappy", "gzip", "zstd", "none":
	default:
		return fmt.Errorf("invalid compression: %s (must be snappy, gzip, zstd, or none)", config.Output.Compression)
	}

	if config.Output.MaxRowsPerFile < 0 {
		return fmt.Errorf("invalid max_rows_per_file: %d", config.Output.MaxRowsPerFile)
	}

	if config.Storage.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid requests_per_second: %v", config.Storage.RequestsPerSecond)
	}

	if config.Transform.StartTimePrecision != "date" && config.Transform.StartTimePrecision != "timestamp" {
		return fmt.Errorf("invalid start_time_precision: %s (must be date or timestamp)", config.Transform.StartTimePrecision)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}
