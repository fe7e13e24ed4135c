package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Persistence drivers
const (
	PersistenceNone     = "none"
	PersistenceFile     = "file"
	PersistencePostgres = "postgres"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Persistence   PersistenceConfig  `mapstructure:"persistence"`
	Ethereum      EthereumConfig     `mapstructure:"ethereum"`
	Ledger        LedgerConfig       `mapstructure:"ledger"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Monitoring    MonitoringConfig   `mapstructure:"monitoring"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// PersistenceConfig selects where the campaign cache and notification queue
// are snapshotted between sessions.
type PersistenceConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
}

// EthereumConfig contains chain client settings
type EthereumConfig struct {
	RPCURL              string        `mapstructure:"rpc_url"`
	ChainID             int64         `mapstructure:"chain_id"`
	FactoryContract     string        `mapstructure:"factory_contract"`
	PrivateKey          string        `mapstructure:"private_key"`
	EncryptedKey        string        `mapstructure:"encrypted_private_key"`
	KeyMasterKey        string        `mapstructure:"key_master_key"`
	GasLimit            uint64        `mapstructure:"gas_limit"`
	MaxGasPrice         string        `mapstructure:"max_gas_price"`
	PollingInterval     time.Duration `mapstructure:"polling_interval"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	StartBlock          int64         `mapstructure:"start_block"`
	FirstCampaignID     uint64        `mapstructure:"first_campaign_id"`
	ReadConcurrency     int           `mapstructure:"read_concurrency"`
	ReadRetryMaxElapsed time.Duration `mapstructure:"read_retry_max_elapsed"`
}

// LedgerConfig contains transaction ledger settings
type LedgerConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// NotificationConfig contains notification center settings
type NotificationConfig struct {
	Expiry time.Duration `mapstructure:"expiry"`
}

// CacheConfig contains campaign cache settings
type CacheConfig struct {
	MaxEntries      int           `mapstructure:"max_entries"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// AuthConfig contains the operator token settings for write routes.
// An empty secret disables authentication.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads the service configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	return load(configPath, validate)
}

// LoadDatabase loads the configuration for the migration runner, which only
// needs the database section.
func LoadDatabase(configPath string) (*Config, error) {
	return load(configPath, func(config *Config) error {
		if config.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		return nil
	})
}

func load(configPath string, check func(*Config) error) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := check(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "60s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.database", "crowdfund")

	// Persistence defaults
	v.SetDefault("persistence.driver", PersistenceFile)
	v.SetDefault("persistence.dir", "./data")

	// Ethereum defaults
	v.SetDefault("ethereum.gas_limit", 500000)
	v.SetDefault("ethereum.polling_interval", "4s")
	v.SetDefault("ethereum.confirmation_timeout", "5m")
	v.SetDefault("ethereum.start_block", 0)
	v.SetDefault("ethereum.first_campaign_id", 0)
	v.SetDefault("ethereum.read_concurrency", 8)
	v.SetDefault("ethereum.read_retry_max_elapsed", "30s")

	// Ledger defaults
	v.SetDefault("ledger.retention", "24h")
	v.SetDefault("ledger.prune_interval", "10m")

	// Notification defaults
	v.SetDefault("notifications.expiry", "10s")

	// Cache defaults
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.refresh_interval", "1m")

	// Auth defaults
	v.SetDefault("auth.jwt_issuer", "crowdfund-client")

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Ethereum.RPCURL == "" {
		return fmt.Errorf("ethereum.rpc_url is required")
	}
	if config.Ethereum.FactoryContract == "" {
		return fmt.Errorf("ethereum.factory_contract is required")
	}
	if config.Ethereum.PrivateKey == "" {
		if config.Ethereum.EncryptedKey == "" {
			return fmt.Errorf("ethereum.private_key or ethereum.encrypted_private_key is required")
		}
		if config.Ethereum.KeyMasterKey == "" {
			return fmt.Errorf("ethereum.key_master_key is required with an encrypted private key")
		}
	}
	switch config.Persistence.Driver {
	case PersistenceNone, PersistenceFile:
	case PersistencePostgres:
		if config.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres persistence")
		}
	default:
		return fmt.Errorf("unknown persistence.driver %q", config.Persistence.Driver)
	}
	return nil
}
