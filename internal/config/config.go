// Package config loads the flagsim configuration from a YAML file and
// FLAGSIM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/flagcube"
	"github.com/hupe1980/flagcube/codec"
	"github.com/hupe1980/flagcube/dataset"
)

// Config holds the simulation configuration.
type Config struct {
	// Shape is the flag cube to allocate.
	Shape ShapeConfig `mapstructure:"shape" yaml:"shape"`

	// Agents configures the flagging agents of a run.
	Agents AgentsConfig `mapstructure:"agents" yaml:"agents"`

	// Storage configures allocation.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Data configures the simulated dataset.
	Data DataConfig `mapstructure:"data" yaml:"data"`

	// Output configures where results go.
	Output OutputConfig `mapstructure:"output" yaml:"output"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ShapeConfig mirrors flagcube.Shape with config keys.
type ShapeConfig struct {
	Correlations int `mapstructure:"correlations" yaml:"correlations"`
	Channels     int `mapstructure:"channels" yaml:"channels"`
	Baselines    int `mapstructure:"baselines" yaml:"baselines"`
	TimeSlots    int `mapstructure:"time_slots" yaml:"time_slots"`
}

// Cube returns the configured shape.
func (s ShapeConfig) Cube() flagcube.Shape {
	return flagcube.Shape{
		NumCorrelations: s.Correlations,
		NumChannels:     s.Channels,
		NumBaselines:    s.Baselines,
		NumTimeSlots:    s.TimeSlots,
	}
}

// AgentsConfig describes the clip agents.
type AgentsConfig struct {
	Clip        int     `mapstructure:"clip" yaml:"clip"`
	Policy      string  `mapstructure:"policy" yaml:"policy"`
	Min         float32 `mapstructure:"min" yaml:"min"`
	Max         float32 `mapstructure:"max" yaml:"max"`
	Average     bool    `mapstructure:"average" yaml:"average"`
	RowFraction float64 `mapstructure:"row_fraction" yaml:"row_fraction"`
}

// StorageConfig holds allocation limits.
type StorageConfig struct {
	Wide        string `mapstructure:"wide" yaml:"wide"`
	MemoryLimit int64  `mapstructure:"memory_limit" yaml:"memory_limit"`
	IOLimit     int64  `mapstructure:"io_limit" yaml:"io_limit"`
	TimeWindow  int    `mapstructure:"time_window" yaml:"time_window"`
	Workers     int    `mapstructure:"workers" yaml:"workers"`
}

// DataConfig shapes the random amplitudes.
type DataConfig struct {
	Seed        int64   `mapstructure:"seed" yaml:"seed"`
	Mean        float32 `mapstructure:"mean" yaml:"mean"`
	Spread      float32 `mapstructure:"spread" yaml:"spread"`
	OutlierRate float64 `mapstructure:"outlier_rate" yaml:"outlier_rate"`
	OutlierGain float32 `mapstructure:"outlier_gain" yaml:"outlier_gain"`
	AbsentRate  float64 `mapstructure:"absent_rate" yaml:"absent_rate"`
	FlagRate    float64 `mapstructure:"flag_rate" yaml:"flag_rate"`
}

// OutputConfig controls the report and the frame file.
type OutputConfig struct {
	File        string `mapstructure:"file" yaml:"file"`
	Compression string `mapstructure:"compression" yaml:"compression"`
	Codec       string `mapstructure:"codec" yaml:"codec"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Shape: ShapeConfig{
			Correlations: 4,
			Channels:     64,
			Baselines:    21,
			TimeSlots:    16,
		},
		Agents: AgentsConfig{
			Clip:        2,
			Policy:      flagcube.PolicyHonor.String(),
			Min:         0,
			Max:         3,
			RowFraction: 0.5,
		},
		Storage: StorageConfig{
			Wide: "auto",
		},
		Data: DataConfig{
			Seed:        42,
			Mean:        1,
			Spread:      0.5,
			OutlierRate: 0.02,
			OutlierGain: 10,
			AbsentRate:  0.01,
			FlagRate:    0.01,
		},
		Output: OutputConfig{
			Compression: dataset.CompressionZSTD.String(),
			Codec:       "json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from file and environment. An empty configPath
// searches ~/.flagsim and the working directory for config.yaml; a missing
// file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".flagsim"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FLAGSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("shape.correlations", d.Shape.Correlations)
	v.SetDefault("shape.channels", d.Shape.Channels)
	v.SetDefault("shape.baselines", d.Shape.Baselines)
	v.SetDefault("shape.time_slots", d.Shape.TimeSlots)
	v.SetDefault("agents.clip", d.Agents.Clip)
	v.SetDefault("agents.policy", d.Agents.Policy)
	v.SetDefault("agents.min", d.Agents.Min)
	v.SetDefault("agents.max", d.Agents.Max)
	v.SetDefault("agents.average", d.Agents.Average)
	v.SetDefault("agents.row_fraction", d.Agents.RowFraction)
	v.SetDefault("storage.wide", d.Storage.Wide)
	v.SetDefault("storage.memory_limit", d.Storage.MemoryLimit)
	v.SetDefault("storage.io_limit", d.Storage.IOLimit)
	v.SetDefault("storage.time_window", d.Storage.TimeWindow)
	v.SetDefault("storage.workers", d.Storage.Workers)
	v.SetDefault("data.seed", d.Data.Seed)
	v.SetDefault("data.mean", d.Data.Mean)
	v.SetDefault("data.spread", d.Data.Spread)
	v.SetDefault("data.outlier_rate", d.Data.OutlierRate)
	v.SetDefault("data.outlier_gain", d.Data.OutlierGain)
	v.SetDefault("data.absent_rate", d.Data.AbsentRate)
	v.SetDefault("data.flag_rate", d.Data.FlagRate)
	v.SetDefault("output.file", d.Output.File)
	v.SetDefault("output.compression", d.Output.Compression)
	v.SetDefault("output.codec", d.Output.Codec)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate checks that every enumerated setting names a known value.
func (c *Config) Validate() error {
	if err := c.Shape.Cube().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Agents.Clip < 1 {
		return fmt.Errorf("config: agents.clip must be at least 1, got %d", c.Agents.Clip)
	}
	if _, err := flagcube.ParsePolicy(c.Agents.Policy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.WideMode(); err != nil {
		return err
	}
	if _, err := dataset.ParseCompression(c.Output.Compression); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := codec.ByName(c.Output.Codec); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// WideMode parses Storage.Wide.
func (c *Config) WideMode() (flagcube.WideMode, error) {
	switch strings.ToLower(c.Storage.Wide) {
	case "", "auto":
		return flagcube.WideAuto, nil
	case "force", "on":
		return flagcube.WideForce, nil
	case "disabled", "off":
		return flagcube.WideDisabled, nil
	default:
		return 0, fmt.Errorf("config: unknown storage.wide %q", c.Storage.Wide)
	}
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
