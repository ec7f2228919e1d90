package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the market server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Token    TokenConfig    `mapstructure:"token"`
	Platform PlatformConfig `mapstructure:"platform"`
	Indexer  IndexerConfig  `mapstructure:"indexer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Shutdown ShutdownConfig `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings for the index store.
// Leaving Host empty disables the indexer.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// LedgerConfig contains native ledger settings
type LedgerConfig struct {
	// OperatorAddress is the facade owner / minter account.
	OperatorAddress string `mapstructure:"operator_address"`
	// TreasuryAddress is the collection treasury used for burn staging.
	TreasuryAddress string `mapstructure:"treasury_address"`
	// CollectionFunding is the payment attached to collection creation,
	// in the smallest native unit.
	CollectionFunding string `mapstructure:"collection_funding"`
}

// TokenConfig contains collection metadata
type TokenConfig struct {
	Name   string `mapstructure:"name"`
	Symbol string `mapstructure:"symbol"`
}

// PlatformConfig contains marketplace fee settings
type PlatformConfig struct {
	FeeBps      uint16 `mapstructure:"fee_bps"`
	FeeReceiver string `mapstructure:"fee_receiver"`
	// OperatorAddress is the marketplace identity sellers approve.
	OperatorAddress string `mapstructure:"operator_address"`
}

// IndexerConfig contains settings for the event indexer
type IndexerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8081)

	// Database defaults
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "usiko_index")

	// Token defaults
	viper.SetDefault("token.name", "Usiko Codex")
	viper.SetDefault("token.symbol", "USKO")

	// Platform defaults
	viper.SetDefault("platform.fee_bps", 250)

	// Ledger defaults
	viper.SetDefault("ledger.collection_funding", "5000000000")

	// Indexer defaults
	viper.SetDefault("indexer.enabled", true)
	viper.SetDefault("indexer.interval", "10s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	viper.SetDefault("shutdown.timeout", "30s")
}

func validate(config *Config) error {
	if config.Ledger.OperatorAddress == "" {
		return fmt.Errorf("ledger.operator_address is required")
	}
	if config.Ledger.TreasuryAddress == "" {
		return fmt.Errorf("ledger.treasury_address is required")
	}
	if config.Platform.FeeReceiver == "" {
		return fmt.Errorf("platform.fee_receiver is required")
	}
	if config.Platform.FeeBps > 10000 {
		return fmt.Errorf("platform.fee_bps must not exceed 10000")
	}
	if config.Indexer.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required when the indexer is enabled")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
