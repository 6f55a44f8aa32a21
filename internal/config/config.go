package config

import (
	"fmt"
	"os"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr               string `mapstructure:"addr"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
	ReadTimeoutSec     int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec    int    `mapstructure:"write_timeout_sec"`
}

type DatabaseConfig struct {
	DSN                  string `mapstructure:"dsn"`
	Slaves               string `mapstructure:"slaves"`
	MaxOpenConns         int    `mapstructure:"max_open_conns"`
	MaxIdleConns         int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec   int    `mapstructure:"conn_max_lifetime_sec"`
	ConnectRetries       int    `mapstructure:"connect_retries"`
	ConnectRetryDelaySec int    `mapstructure:"connect_retry_delay_sec"`
}

type MigrationsConfig struct {
	Path string `mapstructure:"path"`
}

type KafkaConfig struct {
	Brokers              []string `mapstructure:"brokers"`
	Topic                string   `mapstructure:"topic"`
	GroupID              string   `mapstructure:"group_id"`
	SessionTimeoutSec    int      `mapstructure:"session_timeout_sec"`
	HeartbeatIntervalSec int      `mapstructure:"heartbeat_interval_sec"`
}

type StorageConfig struct {
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`

	// TmpPrefix is the private namespace fresh uploads land in; PublicPrefix
	// is where content-addressed artifacts are published.
	TmpPrefix     string `mapstructure:"tmp_prefix"`
	PublicPrefix  string `mapstructure:"public_prefix"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type ProcessingConfig struct {
	OutputQuality int `mapstructure:"output_quality"`
}

type CleanupConfig struct {
	RetentionHours    int `mapstructure:"retention_hours"`
	RetryAttempts     int `mapstructure:"retry_attempts"`
	RetryDelayHours   int `mapstructure:"retry_delay_hours"`
	SweepIntervalMin  int `mapstructure:"sweep_interval_min"`
	AlertVeryOldCount int `mapstructure:"alert_very_old_count"`
	AlertTotalCount   int `mapstructure:"alert_total_count"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(path string) (*Config, error) {
	cfg := config.New()

	configPath := path
	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		} else if _, err := os.Stat("/app/config.yaml"); err == nil {
			configPath = "/app/config.yaml"
		} else {
			return nil, fmt.Errorf("config.yaml not found")
		}
	}

	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = ""
	}

	if err := cfg.Load(configPath, envPath, "APP"); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appConfig := &Config{}
	if err := cfg.Unmarshal(appConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(appConfig)

	if err := validateConfig(appConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	zlog.Logger.Info().
		Str("s3_bucket", appConfig.Storage.S3Bucket).
		Str("tmp_prefix", appConfig.Storage.TmpPrefix).
		Str("public_prefix", appConfig.Storage.PublicPrefix).
		Int("output_quality", appConfig.Processing.OutputQuality).
		Msg("Config loaded successfully via wbf")

	return appConfig, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.TmpPrefix == "" {
		cfg.Storage.TmpPrefix = "tmp/"
	}
	if cfg.Storage.PublicPrefix == "" {
		cfg.Storage.PublicPrefix = "public/"
	}
	if cfg.Processing.OutputQuality == 0 {
		cfg.Processing.OutputQuality = 80
	}
	if cfg.Cleanup.RetentionHours == 0 {
		cfg.Cleanup.RetentionHours = 24
	}
	if cfg.Cleanup.RetryAttempts == 0 {
		cfg.Cleanup.RetryAttempts = 3
	}
	if cfg.Cleanup.RetryDelayHours == 0 {
		cfg.Cleanup.RetryDelayHours = 1
	}
	if cfg.Cleanup.SweepIntervalMin == 0 {
		cfg.Cleanup.SweepIntervalMin = 60
	}
	if cfg.Cleanup.AlertVeryOldCount == 0 {
		cfg.Cleanup.AlertVeryOldCount = 10
	}
	if cfg.Cleanup.AlertTotalCount == 0 {
		cfg.Cleanup.AlertTotalCount = 1000
	}
}

func validateConfig(cfg *Config) error {
	// Server
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("server.shutdown_timeout_sec must be positive")
	}
	if cfg.Server.ReadTimeoutSec <= 0 {
		return fmt.Errorf("server.read_timeout_sec must be positive")
	}
	if cfg.Server.WriteTimeoutSec <= 0 {
		return fmt.Errorf("server.write_timeout_sec must be positive")
	}

	// Database
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if cfg.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if cfg.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must be non-negative")
	}

	// Migrations
	if cfg.Migrations.Path == "" {
		return fmt.Errorf("migrations.path is required")
	}

	// Kafka
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must contain at least one broker")
	}
	if cfg.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if cfg.Kafka.GroupID == "" {
		return fmt.Errorf("kafka.group_id is required")
	}

	// Storage
	if cfg.Storage.S3Endpoint == "" {
		return fmt.Errorf("storage.s3_endpoint is required")
	}
	if cfg.Storage.S3Bucket == "" {
		return fmt.Errorf("storage.s3_bucket is required")
	}
	if cfg.Storage.S3AccessKey == "" || cfg.Storage.S3SecretKey == "" {
		return fmt.Errorf("storage.s3_access_key and storage.s3_secret_key are required")
	}
	if cfg.Storage.PublicBaseURL == "" {
		return fmt.Errorf("storage.public_base_url is required")
	}

	// Processing
	if cfg.Processing.OutputQuality <= 0 || cfg.Processing.OutputQuality > 100 {
		return fmt.Errorf("processing.output_quality must be in (0, 100]")
	}

	// Cleanup
	if cfg.Cleanup.RetentionHours <= 0 {
		return fmt.Errorf("cleanup.retention_hours must be positive")
	}
	if cfg.Cleanup.RetryAttempts <= 0 {
		return fmt.Errorf("cleanup.retry_attempts must be positive")
	}

	if cfg.Logging.Level == "" {
		return fmt.Errorf("logging.level is required")
	}

	return nil
}
