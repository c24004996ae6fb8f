// Package config loads CLI configuration from covenant.yaml.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the Covenant CLI configuration
type Config struct {
	Output OutputConfig `mapstructure:"output"`
	Limits LimitsConfig `mapstructure:"limits"`
}

// OutputConfig controls diagnostic rendering
type OutputConfig struct {
	Color bool `mapstructure:"color"`
	JSON  bool `mapstructure:"json"`
}

// LimitsConfig overrides the VM resource caps. Values above the built-in
// ceilings are clamped by the VM. SleepMs is loaded but not passed on:
// time.sleep always uses the fixed 60 s cap of the time host module.
type LimitsConfig struct {
	CallDepth      int   `mapstructure:"call_depth"`
	LoopIterations int64 `mapstructure:"loop_iterations"`
	RangeLength    int64 `mapstructure:"range_length"`
	SleepMs        int64 `mapstructure:"sleep_ms"`
}

// Load loads the configuration from covenant.yaml or covenant.yml in the
// working directory, falling back to defaults when absent.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("output.color", true)
	v.SetDefault("output.json", false)
	v.SetDefault("limits.call_depth", 256)
	v.SetDefault("limits.loop_iterations", 1_000_000)
	v.SetDefault("limits.range_length", 10_000_000)
	v.SetDefault("limits.sleep_ms", 60_000)

	v.SetConfigName("covenant")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COVENANT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: defaults apply.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}
