package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/dexlens/dexlens/pkg/chain"
)

// Config represents the indexer configuration
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database DatabaseConfig  `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Networks []NetworkConfig `mapstructure:"networks"`
	Jobs     JobsConfig      `mapstructure:"jobs"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Shutdown ShutdownConfig  `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
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

// RedisConfig contains the read-API cache settings
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NetworkConfig describes one indexed chain
type NetworkConfig struct {
	ChainID        uint64        `mapstructure:"chain_id"`
	Name           string        `mapstructure:"name"`
	Capability     string        `mapstructure:"capability"`
	StableAddress  string        `mapstructure:"stable_address"`
	WrappedNative  string        `mapstructure:"wrapped_native"`
	Native         string        `mapstructure:"native"`
	SubgraphURL    string        `mapstructure:"subgraph_url"`
	RPCURL         string        `mapstructure:"rpc_url"`
	QueryContract  string        `mapstructure:"query_contract"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// JobsConfig contains intervals for the periodic jobs
type JobsConfig struct {
	PriceInterval     time.Duration `mapstructure:"price_interval"`
	TokenListInterval time.Duration `mapstructure:"token_list_interval"`
	TokenListURL      string        `mapstructure:"token_list_url"`
	SwapInterval      time.Duration `mapstructure:"swap_interval"`
	SwapPageSize      int           `mapstructure:"swap_page_size"`
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

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// ChainNetworks converts the configured network list into registry entries.
// Validation of the entries themselves happens in chain.NewRegistry.
func (c *Config) ChainNetworks() []chain.Network {
	networks := make([]chain.Network, 0, len(c.Networks))
	for _, n := range c.Networks {
		networks = append(networks, chain.Network{
			ChainID:        n.ChainID,
			Name:           n.Name,
			Capability:     chain.Capability(n.Capability),
			StableAddress:  n.StableAddress,
			WrappedNative:  n.WrappedNative,
			Native:         n.Native,
			SubgraphURL:    n.SubgraphURL,
			RPCURL:         n.RPCURL,
			QueryContract:  n.QueryContract,
			RequestTimeout: n.RequestTimeout,
		})
	}
	return networks
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
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
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "dexlens")

	// Redis defaults
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", "30s")

	// Job defaults
	viper.SetDefault("jobs.price_interval", "1m")
	viper.SetDefault("jobs.token_list_interval", "1h")
	viper.SetDefault("jobs.swap_interval", "2m")
	viper.SetDefault("jobs.swap_page_size", 500)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	viper.SetDefault("shutdown.timeout", "30s")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if len(config.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}
	if config.Jobs.PriceInterval <= 0 {
		return fmt.Errorf("jobs.price_interval must be positive")
	}
	return nil
}
