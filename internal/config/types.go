package config

// Config represents the main configuration structure
type Config struct {
	Keys      KeysConfig      `yaml:"keys" mapstructure:"keys"`
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Transform TransformConfig `yaml:"transform" mapstructure:"transform"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// KeysConfig holds the object-storage credentials
type KeysConfig struct {
	AWSAccessKeyID     string `yaml:"aws_access_key_id" mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key" mapstructure:"aws_secret_access_key"`
}

// PathsConfig holds the input and output storage roots
type PathsConfig struct {
	InputData  string `yaml:"input_data" mapstructure:"input_data"`
	OutputData string `yaml:"output_data" mapstructure:"output_data"`
}

// StorageConfig contains object-storage client configuration
type StorageConfig struct {
	Region            string  `yaml:"region" mapstructure:"region"`
	Endpoint          string  `yaml:"endpoint" mapstructure:"endpoint"`
	ForcePathStyle    bool    `yaml:"force_path_style" mapstructure:"force_path_style"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 = unlimited
}

// OutputConfig contains table writer configuration
type OutputConfig struct {
	Compression    string `yaml:"compression" mapstructure:"compression"`             // snappy, gzip, zstd or none
	MaxRowsPerFile int    `yaml:"max_rows_per_file" mapstructure:"max_rows_per_file"` // 0 = one file per partition
}

// TransformConfig contains derivation settings
type TransformConfig struct {
	// StartTimePrecision is "date" (time of day dropped, hour always 0)
	// or "timestamp".
	StartTimePrecision string `yaml:"start_time_precision" mapstructure:"start_time_precision"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Paths: PathsConfig{
			InputData:  "s3a://udacity-dend/",
			OutputData: "./output/",
		},
		Storage: StorageConfig{
			Region: "us-west-2",
		},
		Output: OutputConfig{
			Compression: "snappy",
		},
		Transform: TransformConfig{
			StartTimePrecision: "date",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
	cfg.Logging.File.Path = "logs/etl.log"
	return cfg
}
