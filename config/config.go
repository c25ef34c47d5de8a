// Package config loads the payflow server settings from environment
// variables, with optional .env support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/tradewise/payflow/types"
)

// Config holds every tunable of the payflow server process.
type Config struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string

	// LogLevel selects the minimum emitted log level.
	LogLevel string

	// ChainID of the settlement network payments must use.
	ChainID uint64

	// Recipient address payments are sent to.
	Recipient string

	// FacilitatorURL of the service that relays authorizations on chain.
	// Empty switches the server to local verification with simulated
	// settlement.
	FacilitatorURL string

	// RPCURL of the chain node used for confirmation tracking. Optional.
	RPCURL string

	// MaxPayment is the client payment ceiling, in USDC.
	MaxPayment string

	// Confirmations to wait for before a payment counts as final.
	Confirmations uint64

	// RequestTimeout bounds each outbound HTTP round trip.
	RequestTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:     getEnv("PAYFLOW_LISTEN_ADDR", ":8080"),
		LogLevel:       getEnv("PAYFLOW_LOG_LEVEL", "info"),
		ChainID:        getEnvAsUint("PAYFLOW_CHAIN_ID", types.ChainIDBase),
		Recipient:      getEnv("PAYFLOW_RECIPIENT", ""),
		FacilitatorURL: getEnv("PAYFLOW_FACILITATOR_URL", "https://facilitator.x402.org"),
		RPCURL:         getEnv("PAYFLOW_RPC_URL", ""),
		MaxPayment:     getEnv("PAYFLOW_MAX_PAYMENT", "1.00"),
		Confirmations:  getEnvAsUint("PAYFLOW_CONFIRMATIONS", 1),
		RequestTimeout: getEnvAsDuration("PAYFLOW_REQUEST_TIMEOUT", 30*time.Second),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Network returns the settlement network for the configured chain.
func (c *Config) Network() types.Network {
	network, _ := types.NetworkFromChainID(c.ChainID)
	return network
}

func (c *Config) validate() error {
	if _, ok := types.NetworkFromChainID(c.ChainID); !ok {
		return fmt.Errorf("unsupported chain id %d", c.ChainID)
	}
	if c.Recipient == "" {
		return fmt.Errorf("PAYFLOW_RECIPIENT is required")
	}
	if c.Confirmations == 0 {
		return fmt.Errorf("PAYFLOW_CONFIRMATIONS must be at least 1")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("PAYFLOW_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsUint(key string, fallback uint64) uint64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
