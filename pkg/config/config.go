package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Chains     []ChainConfig    `mapstructure:"chains"`
	Indexer    IndexerConfig    `mapstructure:"indexer"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
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

// ChainConfig describes one observed blockchain network.
// Exactly one entry must have is_main set; the main chain hosts the
// campaign and withdrawal contract logic, every chain emits donations.
type ChainConfig struct {
	Name               string `mapstructure:"name"`
	RPCURL             string `mapstructure:"rpc_url"`
	ChainID            int64  `mapstructure:"chain_id"`
	ContractAddress    string `mapstructure:"contract_address"`
	IsMain             bool   `mapstructure:"is_main"`
	NativeDecimals     int32  `mapstructure:"native_decimals"`
	ConfirmationBlocks uint64 `mapstructure:"confirmation_blocks"`
}

// IndexerConfig contains block synchronization settings
type IndexerConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	RecentHistory     uint64        `mapstructure:"recent_history"`
	MaxAcceptableGap  uint64        `mapstructure:"max_acceptable_gap"`
	RealtimeThreshold uint64        `mapstructure:"realtime_threshold"`
	RealtimeBatchSize uint64        `mapstructure:"realtime_batch_size"`
	CatchupBatchSize  uint64        `mapstructure:"catchup_batch_size"`
	RPCMaxAttempts    int           `mapstructure:"rpc_max_attempts"`
	RPCRetryInterval  time.Duration `mapstructure:"rpc_retry_interval"`
}

// RelayConfig contains donation sweep settings
type RelayConfig struct {
	MonitorInterval   time.Duration `mapstructure:"monitor_interval"`
	SubmitInterval    time.Duration `mapstructure:"submit_interval"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	StuckInterval     time.Duration `mapstructure:"stuck_interval"`

	MinSweepWei       string        `mapstructure:"min_sweep_wei"`
	DustMarginWei     string        `mapstructure:"dust_margin_wei"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	GasReservePercent int64         `mapstructure:"gas_reserve_percent"`

	FeeBoostPercent     int64 `mapstructure:"fee_boost_percent"`
	FeeBoostStepPercent int64 `mapstructure:"fee_boost_step_percent"`
	GasBufferPercent    int64 `mapstructure:"gas_buffer_percent"`

	StuckTimeout    time.Duration `mapstructure:"stuck_timeout"`
	FinalTimeout    time.Duration `mapstructure:"final_timeout"`
	MaxReplacements int           `mapstructure:"max_replacements"`

	// MasterKey is the hex-encoded 32-byte key encrypting wallet signing keys
	MasterKey string `mapstructure:"master_key"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
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

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")

	// Indexer defaults
	viper.SetDefault("indexer.interval", "15s")
	viper.SetDefault("indexer.recent_history", 50000)
	viper.SetDefault("indexer.max_acceptable_gap", 500000)
	viper.SetDefault("indexer.realtime_threshold", 100)
	viper.SetDefault("indexer.realtime_batch_size", 50)
	viper.SetDefault("indexer.catchup_batch_size", 2000)
	viper.SetDefault("indexer.rpc_max_attempts", 4)
	viper.SetDefault("indexer.rpc_retry_interval", "500ms")

	// Relay defaults
	viper.SetDefault("relay.monitor_interval", "1m")
	viper.SetDefault("relay.submit_interval", "30s")
	viper.SetDefault("relay.reconcile_interval", "30s")
	viper.SetDefault("relay.stuck_interval", "2m")
	viper.SetDefault("relay.min_sweep_wei", "10000000000000000")
	viper.SetDefault("relay.dust_margin_wei", "1000000000000000")
	viper.SetDefault("relay.cooldown", "10m")
	viper.SetDefault("relay.gas_reserve_percent", 35)
	viper.SetDefault("relay.fee_boost_percent", 20)
	viper.SetDefault("relay.fee_boost_step_percent", 15)
	viper.SetDefault("relay.gas_buffer_percent", 25)
	viper.SetDefault("relay.stuck_timeout", "5m")
	viper.SetDefault("relay.final_timeout", "30m")
	viper.SetDefault("relay.max_replacements", 3)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

// Validate checks configuration consistency
func Validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if len(config.Chains) == 0 {
		return fmt.Errorf("at least one chain is required")
	}

	mains := 0
	seen := make(map[string]bool)
	for i := range config.Chains {
		chain := &config.Chains[i]
		if chain.Name == "" {
			return fmt.Errorf("chains[%d].name is required", i)
		}
		if seen[chain.Name] {
			return fmt.Errorf("duplicate chain name %q", chain.Name)
		}
		seen[chain.Name] = true
		if chain.RPCURL == "" {
			return fmt.Errorf("chains[%d].rpc_url is required", i)
		}
		if chain.ContractAddress == "" {
			return fmt.Errorf("chains[%d].contract_address is required", i)
		}
		if chain.NativeDecimals == 0 {
			chain.NativeDecimals = 18
		}
		if chain.IsMain {
			mains++
		}
	}
	if mains != 1 {
		return fmt.Errorf("exactly one chain must have is_main set, got %d", mains)
	}

	if config.Relay.GasReservePercent < 0 || config.Relay.GasReservePercent >= 100 {
		return fmt.Errorf("relay.gas_reserve_percent must be in [0, 100)")
	}
	return nil
}

// MainChain returns the configured main chain
func (c *Config) MainChain() *ChainConfig {
	for i := range c.Chains {
		if c.Chains[i].IsMain {
			return &c.Chains[i]
		}
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
