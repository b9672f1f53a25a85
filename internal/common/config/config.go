// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig      `mapstructure:"app"`
	Database  DatabaseConfig `mapstructure:"database"`
	Providers ProviderConfig `mapstructure:"providers"`
	Engine    EngineConfig   `mapstructure:"engine"`
	Registry  RegistryConfig `mapstructure:"registry"`
	Audit     AuditConfig    `mapstructure:"audit"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
}

// --- Provider Configuration ---

// ProviderConfig holds settings for the channel transports. A channel whose
// provider is not configured degrades to the simulated client rather than
// failing sends.
type ProviderConfig struct {
	AWS   AWSConfig   `mapstructure:"aws"`
	Email EmailConfig `mapstructure:"email"`
	SMS   SMSConfig   `mapstructure:"sms"`
	Push  PushConfig  `mapstructure:"push"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

type EmailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

type SMSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	DefaultCountryCode string `mapstructure:"default_country_code"`
	SenderID           string `mapstructure:"sender_id"`
}

type PushConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	MobilePlatformARN   string `mapstructure:"mobile_platform_arn"`
	WebPlatformARN      string `mapstructure:"web_platform_arn"`
	DefaultTopicARN     string `mapstructure:"default_topic_arn"`
	DefaultSound        string `mapstructure:"default_sound"`
	DefaultIcon         string `mapstructure:"default_icon"`
}

// --- Engine Configuration ---

// EngineConfig holds the delivery engine's dispatch and sweep settings.
type EngineConfig struct {
	MaxAttempts     int `mapstructure:"max_attempts"`
	DispatchTimeout int `mapstructure:"dispatch_timeout"` // milliseconds
	SweepInterval   int `mapstructure:"sweep_interval"`   // milliseconds
	SweepBatchSize  int `mapstructure:"sweep_batch_size"`
	ClaimLease      int `mapstructure:"claim_lease"` // milliseconds
	BulkWorkers     int `mapstructure:"bulk_workers"`
	CacheTTL        int `mapstructure:"cache_ttl"` // milliseconds, template/preference cache
}

// RegistryConfig points at the seed template registry file.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// AuditConfig controls the elasticsearch delivery-event audit trail.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
