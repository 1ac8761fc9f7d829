package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configDir  = ".pgharness"
	configFile = "config"
	configType = "yaml"

	envPrefix = "PGHARNESS"
)

// Load reads the configuration from ~/.pgharness/config.yaml with
// environment overrides (PGHARNESS_TIMEOUT_SECONDS and friends). A missing
// file yields the defaults.
func Load() (*Config, error) {
	v := viper.New()

	dir, err := configDirPath()
	if err != nil {
		return nil, fmt.Errorf("config dir: %w", err)
	}

	v.SetConfigName(configFile)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("psql_path", "psql")
	v.SetDefault("timeout_seconds", 180)
	v.SetDefault("poll_interval_ms", 100)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in settings without touching the filesystem or
// the environment.
func Default() *Config {
	return &Config{
		PsqlPath:       "psql",
		TimeoutSeconds: 180,
		PollIntervalMs: 100,
	}
}

func configDirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}
