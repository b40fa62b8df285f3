// Package config defines the typed configuration sections shared across the
// application. Loading and defaulting live in internal/infrastructure/config.
package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// MQTTConfig covers the ingress connection to the broker. The core
// authenticates as a backend client, not with device certificates.
type MQTTConfig struct {
	BrokerURL         string `mapstructure:"broker_url"`
	ClientID          string `mapstructure:"client_id"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	CAFile            string `mapstructure:"ca_file"`
	CertFile          string `mapstructure:"cert_file"`
	KeyFile           string `mapstructure:"key_file"`
	ConnectTimeoutSec int    `mapstructure:"connect_timeout_sec"`
}

type SpotifyConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// TokenURL and APIBaseURL default to the public Spotify endpoints and are
	// overridable for tests.
	TokenURL   string `mapstructure:"token_url"`
	APIBaseURL string `mapstructure:"api_base_url"`
}

// ProvisioningConfig covers device identity creation: the signing CA and the
// connection details echoed back to the caller in the credential bundle.
type ProvisioningConfig struct {
	CACertFile     string `mapstructure:"ca_cert_file"`
	CAKeyFile      string `mapstructure:"ca_key_file"`
	BrokerEndpoint string `mapstructure:"broker_endpoint"`
	Region         string `mapstructure:"region"`
	CertDays       int    `mapstructure:"cert_days"`
}

// OrchestratorConfig tunes the control loops.
type OrchestratorConfig struct {
	ReaperTickSec        int `mapstructure:"reaper_tick_sec"`
	WardenTickSec        int `mapstructure:"warden_tick_sec"`
	TokenSafetyMarginSec int `mapstructure:"token_safety_margin_sec"`
	FanOutLimit          int `mapstructure:"fan_out_limit"`
	HandlerTimeoutSec    int `mapstructure:"handler_timeout_sec"`
}

func (c *OrchestratorConfig) ReaperTick() time.Duration {
	return time.Duration(c.ReaperTickSec) * time.Second
}

func (c *OrchestratorConfig) WardenTick() time.Duration {
	return time.Duration(c.WardenTickSec) * time.Second
}

func (c *OrchestratorConfig) TokenSafetyMargin() time.Duration {
	return time.Duration(c.TokenSafetyMarginSec) * time.Second
}

func (c *OrchestratorConfig) HandlerTimeout() time.Duration {
	return time.Duration(c.HandlerTimeoutSec) * time.Second
}

// SecretsConfig points at the age identity used to encrypt token material at
// rest.
type SecretsConfig struct {
	AgeIdentityFile string `mapstructure:"age_identity_file"`
}
