package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Bus    BusConfig
	Sync   SyncConfig
	Log    LogConfig
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// BusConfig selects the broadcast transport. "memory" scopes the broadcast
// group to this process; "redis" lets sessions in separate processes share
// one group.
type BusConfig struct {
	Backend      string `mapstructure:"backend"`
	RedisURL     string `mapstructure:"redis_url"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// SyncConfig tunes the filter channel. FilterRate of 0 disables the publish
// limiter so every local keystroke broadcasts.
type SyncConfig struct {
	FilterRate  float64 `mapstructure:"filter_rate"`
	FilterBurst int     `mapstructure:"filter_burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("store.path", "registry.db")
	viper.SetDefault("bus.backend", "memory")
	viper.SetDefault("bus.pool_size", 10)
	viper.SetDefault("bus.min_idle_conns", 2)
	viper.SetDefault("sync.filter_rate", 0)
	viper.SetDefault("sync.filter_burst", 1)
	viper.SetDefault("log.level", "info")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file falls back to defaults and environment overrides.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
