package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"tonvault/internal/blockchain/tonchain"
)

// Supported TON networks
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	TON      TONConfig
	Indexer  IndexerConfig
	Monitor  MonitorConfig
	Listener ListenerConfig
	EVM      EVMConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// TONConfig selects the network and the vault being served
type TONConfig struct {
	Network      string // "mainnet" or "testnet"
	ConfigURL    string // lite server global config
	VaultAddress string
}

// IndexerConfig holds the tonapi HTTP indexer settings
type IndexerConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// MonitorConfig holds transaction monitor defaults
type MonitorConfig struct {
	Interval         time.Duration
	TickBudget       int
	ListLimit        int
	Window           time.Duration
	QueryIDTolerance uint64
	RequiredCount    int
	CallTimeout      time.Duration
	MaxSessions      int64         // concurrent monitor sessions
	SessionRetention time.Duration // finished sessions older than this are swept
	SweepSchedule    string        // cron expression, e.g. "@every 1h"
}

// ListenerConfig holds event listener settings
type ListenerConfig struct {
	Enabled           bool
	StartLT           uint64 // 0 resumes from the stored cursor or starts at the latest transaction
	PollInterval      time.Duration
	BatchSize         int
	CallTimeout       time.Duration // bound on each lite-client fetch
	WebhookURL        string
	WebhookTimeout    time.Duration
	WebhookMaxElapsed time.Duration
}

// EVMConfig holds the counterparty chain endpoint
type EVMConfig struct {
	RPCEndpoint  string
	ChainID      string
	TokenAddress string // ERC20 escrowed on the EVM side

	EscrowFactory        string // deploys one escrow clone per swap id
	EscrowImplementation string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	network := strings.ToLower(getEnv("TON_NETWORK", NetworkTestnet))

	tolerance, err := getEnvUint64("MONITOR_QUERY_ID_TOLERANCE", 2000)
	if err != nil {
		return nil, err
	}
	startLT, err := getEnvUint64("LISTENER_START_LT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ton_vault"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		TON: TONConfig{
			Network:      network,
			ConfigURL:    getEnv("TON_CONFIG_URL", defaultConfigURL(network)),
			VaultAddress: getEnv("TON_VAULT_ADDRESS", ""),
		},
		Indexer: IndexerConfig{
			BaseURL: strings.TrimRight(getEnv("TON_API_BASE_URL", defaultIndexerURL(network)), "/"),
			APIKey:  getEnv("TON_API_KEY", ""),
			Timeout: getEnvDuration("TON_API_TIMEOUT", 30*time.Second),
		},
		Monitor: MonitorConfig{
			Interval:         time.Duration(getEnvInt("MONITOR_INTERVAL_MS", 5000)) * time.Millisecond,
			TickBudget:       getEnvInt("MONITOR_TICK_BUDGET", 24),
			ListLimit:        getEnvInt("MONITOR_LIST_LIMIT", 30),
			Window:           time.Duration(getEnvInt("MONITOR_WINDOW_MS", 120000)) * time.Millisecond,
			QueryIDTolerance: tolerance,
			RequiredCount:    getEnvInt("MONITOR_REQUIRED_COUNT", 1),
			CallTimeout:      getEnvDuration("MONITOR_CALL_TIMEOUT", 30*time.Second),
			MaxSessions:      int64(getEnvInt("MONITOR_MAX_SESSIONS", 32)),
			SessionRetention: getEnvDuration("MONITOR_SESSION_RETENTION", 7*24*time.Hour),
			SweepSchedule:    getEnv("MONITOR_SWEEP_SCHEDULE", "@every 1h"),
		},
		Listener: ListenerConfig{
			Enabled:           getEnvBool("LISTENER_ENABLED", true),
			StartLT:           startLT,
			PollInterval:      getEnvDuration("LISTENER_POLL_INTERVAL", 5*time.Second),
			BatchSize:         getEnvInt("LISTENER_BATCH_SIZE", 20),
			CallTimeout:       getEnvDuration("LISTENER_CALL_TIMEOUT", 30*time.Second),
			WebhookURL:        getEnv("WEBHOOK_URL", ""),
			WebhookTimeout:    getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			WebhookMaxElapsed: getEnvDuration("WEBHOOK_MAX_ELAPSED", 2*time.Minute),
		},
		EVM: EVMConfig{
			RPCEndpoint:  getEnv("EVM_RPC_ENDPOINT", ""),
			ChainID:      getEnv("EVM_CHAIN_ID", "11155111"),
			TokenAddress: getEnv("EVM_TOKEN_ADDRESS", "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14"),

			EscrowFactory:        getEnv("EVM_ESCROW_FACTORY", ""),
			EscrowImplementation: getEnv("EVM_ESCROW_IMPLEMENTATION", ""),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.TON.Network != NetworkMainnet && c.TON.Network != NetworkTestnet {
		return fmt.Errorf("unknown TON network: %q", c.TON.Network)
	}

	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}
	if c.Monitor.Window <= 0 {
		return fmt.Errorf("monitor window must be positive")
	}
	if c.Monitor.CallTimeout <= 0 {
		return fmt.Errorf("monitor call timeout must be positive")
	}
	if c.Monitor.TickBudget < 1 {
		return fmt.Errorf("monitor tick budget must be at least 1, got %d", c.Monitor.TickBudget)
	}
	if c.Monitor.ListLimit < 1 {
		return fmt.Errorf("monitor list limit must be at least 1, got %d", c.Monitor.ListLimit)
	}
	if c.Monitor.RequiredCount < 1 {
		return fmt.Errorf("monitor required count must be at least 1, got %d", c.Monitor.RequiredCount)
	}
	if c.Monitor.MaxSessions < 1 {
		return fmt.Errorf("monitor max sessions must be at least 1")
	}

	if c.Listener.Enabled {
		if c.TON.VaultAddress == "" {
			return fmt.Errorf("TON_VAULT_ADDRESS is required when the listener is enabled")
		}
		if c.Listener.BatchSize < 1 {
			return fmt.Errorf("listener batch size must be at least 1, got %d", c.Listener.BatchSize)
		}
		if c.Listener.PollInterval <= 0 {
			return fmt.Errorf("listener poll interval must be positive")
		}
		if c.Listener.CallTimeout <= 0 {
			return fmt.Errorf("listener call timeout must be positive")
		}
	}

	for name, v := range map[string]string{
		"EVM_ESCROW_FACTORY":        c.EVM.EscrowFactory,
		"EVM_ESCROW_IMPLEMENTATION": c.EVM.EscrowImplementation,
	} {
		if v != "" && !common.IsHexAddress(v) {
			return fmt.Errorf("%s is not an EVM address: %q", name, v)
		}
	}

	return nil
}

func defaultConfigURL(network string) string {
	if network == NetworkMainnet {
		return tonchain.MainnetConfigURL
	}
	return tonchain.TestnetConfigURL
}

func defaultIndexerURL(network string) string {
	if network == NetworkMainnet {
		return "https://tonapi.io"
	}
	return "https://testnet.tonapi.io"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvUint64 rejects values that are not unsigned integers, negative ones
// included
func getEnvUint64(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an unsigned integer", key, value)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("5s", "2m")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
