package config

import (
	"time"

	"github.com/pawhub/feedsync/internal/bus"
	pkgconfig "github.com/pawhub/feedsync/pkg/config"
)

type Config struct {
	API    APIConfig
	Avatar AvatarConfig
	Store  StoreConfig
	Bridge BridgeConfig
	Log    LogConfig
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AvatarConfig struct {
	AssetBase   string `mapstructure:"asset_base"`
	DefaultPath string `mapstructure:"default_path"`
}

type StoreConfig struct {
	FilePath string `mapstructure:"file_path"`
	// Memory forces the in-memory store regardless of file path.
	Memory bool `mapstructure:"memory"`
}

type BridgeConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	SessionID string          `mapstructure:"session_id"`
	Redis     bus.RedisConfig `mapstructure:"redis"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "feedsync")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("api.base_url", "http://localhost:8080/api/v1")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("avatar.asset_base", "http://localhost:8080/assets")
	v.SetDefault("avatar.default_path", "/img/default-avatar.png")
	v.SetDefault("store.file_path", "./data/feedsync.db")
	v.SetDefault("store.memory", false)
	v.SetDefault("bridge.enabled", false)
	v.SetDefault("bridge.session_id", "")
	v.SetDefault("bridge.redis.address", "localhost:6379")
	v.SetDefault("bridge.redis.password", "")
	v.SetDefault("bridge.redis.db", 0)
	v.SetDefault("bridge.redis.pool_size", 10)
	v.SetDefault("bridge.redis.read_timeout", "3s")
	v.SetDefault("bridge.redis.write_timeout", "3s")
	v.SetDefault("log.level", "info")

	// Bind environment variables
	v.BindEnv("api.base_url", "FEEDSYNC_API_BASE_URL")
	v.BindEnv("api.timeout", "FEEDSYNC_API_TIMEOUT")
	v.BindEnv("avatar.asset_base", "FEEDSYNC_ASSET_BASE")
	v.BindEnv("avatar.default_path", "FEEDSYNC_DEFAULT_AVATAR")
	v.BindEnv("store.file_path", "FEEDSYNC_STORE_PATH")
	v.BindEnv("store.memory", "FEEDSYNC_STORE_MEMORY")
	v.BindEnv("bridge.enabled", "FEEDSYNC_BRIDGE_ENABLED")
	v.BindEnv("bridge.session_id", "FEEDSYNC_SESSION_ID")
	v.BindEnv("bridge.redis.address", "FEEDSYNC_REDIS_ADDRESS")
	v.BindEnv("bridge.redis.password", "FEEDSYNC_REDIS_PASSWORD")
	v.BindEnv("bridge.redis.db", "FEEDSYNC_REDIS_DB")
	v.BindEnv("log.level", "FEEDSYNC_LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
