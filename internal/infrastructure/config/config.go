package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/resona-io/resona/internal/shared/config"
)

type Config struct {
	Server       sharedConfig.ServerConfig       `mapstructure:"server"`
	Database     sharedConfig.DatabaseConfig     `mapstructure:"database"`
	Logger       sharedConfig.LoggerConfig       `mapstructure:"logger"`
	Redis        sharedConfig.RedisConfig        `mapstructure:"redis"`
	Auth         sharedConfig.AuthConfig         `mapstructure:"auth"`
	MQTT         sharedConfig.MQTTConfig         `mapstructure:"mqtt"`
	Spotify      sharedConfig.SpotifyConfig      `mapstructure:"spotify"`
	Provisioning sharedConfig.ProvisioningConfig `mapstructure:"provisioning"`
	Orchestrator sharedConfig.OrchestratorConfig `mapstructure:"orchestrator"`
	Secrets      sharedConfig.SecretsConfig      `mapstructure:"secrets"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables
func Load(env string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("RESONA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine: env vars plus defaults are a complete
		// configuration for containerized deployments.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "resona_dev")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Auth defaults
	viper.SetDefault("auth.jwt_secret", "change-me-in-production")

	// MQTT defaults
	viper.SetDefault("mqtt.broker_url", "ssl://localhost:8883")
	viper.SetDefault("mqtt.client_id", "resona-core")
	viper.SetDefault("mqtt.connect_timeout_sec", 10)

	// Spotify defaults
	viper.SetDefault("spotify.token_url", "https://accounts.spotify.com/api/token")
	viper.SetDefault("spotify.api_base_url", "https://api.spotify.com/v1")

	// Provisioning defaults
	viper.SetDefault("provisioning.ca_cert_file", "./secrets/device-ca.pem")
	viper.SetDefault("provisioning.ca_key_file", "./secrets/device-ca-key.pem")
	viper.SetDefault("provisioning.broker_endpoint", "localhost:8883")
	viper.SetDefault("provisioning.region", "local")
	viper.SetDefault("provisioning.cert_days", 365)

	// Orchestrator defaults
	viper.SetDefault("orchestrator.reaper_tick_sec", 60)
	viper.SetDefault("orchestrator.warden_tick_sec", 1800)
	viper.SetDefault("orchestrator.token_safety_margin_sec", 300)
	viper.SetDefault("orchestrator.fan_out_limit", 10)
	viper.SetDefault("orchestrator.handler_timeout_sec", 30)

	// Secrets defaults
	viper.SetDefault("secrets.age_identity_file", "./secrets/secret-store.key")
}
