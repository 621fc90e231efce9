package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	DatabaseURL    string        `mapstructure:"database_url"`
	Secret         string        `mapstructure:"secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	DrainGrace     time.Duration `mapstructure:"drain_grace"`
	RTC            RTCConfig     `mapstructure:"rtc"`
}

type RTCConfig struct {
	AppID  string        `mapstructure:"app_id"`
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("database_url", "")
	v.SetDefault("secret", "")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("command_timeout", "5s")
	v.SetDefault("drain_grace", "30s")
	v.SetDefault("rtc.ttl", "10m")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
