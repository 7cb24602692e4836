package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Redis      RedisConfig
	Separation SeparationConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type StorageConfig struct {
	DataDir string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SeparationConfig struct {
	// ServiceURL points at the Python separation microservice; empty means
	// the deterministic stub fallback.
	ServiceURL string
	// Workers bounds the pool of concurrent separation runs. Separation is
	// CPU-bound, so the default keeps one model instance busy.
	Workers int
}

type RateLimitConfig struct {
	SeparationsPerHour int
	MixesPerMin        int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("storage.data_dir", "./data")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("separation.service_url", "")
	viper.SetDefault("separation.workers", 1)
	viper.SetDefault("ratelimit.separations_per_hour", 10)
	viper.SetDefault("ratelimit.mixes_per_min", 30)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Storage: StorageConfig{
			DataDir: viper.GetString("storage.data_dir"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Separation: SeparationConfig{
			ServiceURL: viper.GetString("separation.service_url"),
			Workers:    viper.GetInt("separation.workers"),
		},
		RateLimit: RateLimitConfig{
			SeparationsPerHour: viper.GetInt("ratelimit.separations_per_hour"),
			MixesPerMin:        viper.GetInt("ratelimit.mixes_per_min"),
		},
	}

	if cfg.Separation.Workers < 1 {
		cfg.Separation.Workers = 1
	}

	return cfg, nil
}
