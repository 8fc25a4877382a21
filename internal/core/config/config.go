package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	// Payment configuration.
	WalletAddress string
	Network       string // mainnet | testnet3 | regtest | signet
	Oracle        string // mock | bitcoind
	BitcoindRPC   string
	BitcoindUser  string
	BitcoindPass  string
	MinConf       int

	// MockConfirmAfter is how long the mock oracle waits before reporting
	// a pending order as paid.
	MockConfirmAfter time.Duration

	// OrderExpiry is the advisory payment window reported on status reads.
	OrderExpiry time.Duration

	// PollInterval drives the background confirmation worker; zero
	// disables it.
	PollInterval time.Duration

	// WebhookURL, when set, receives a notification for each confirmed
	// payment.
	WebhookURL string

	// MessageSecret keys the per-order message encryption.
	MessageSecret string
}

// LoadConfig reads .env if present, then the environment, with development
// defaults everywhere but the database URL.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment variables")
	}

	return &Config{
		Port:        getEnv("PORT", "3000"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		WalletAddress: getEnv("BITCOIN_WALLET_ADDRESS", ""),
		Network:       getEnv("BITCOIN_NETWORK", "mainnet"),
		Oracle:        getEnv("PAYMENT_ORACLE", "mock"),
		BitcoindRPC:   getEnv("BITCOIND_RPC_HOST", "127.0.0.1:8332"),
		BitcoindUser:  getEnv("BITCOIND_RPC_USER", ""),
		BitcoindPass:  getEnv("BITCOIND_RPC_PASS", ""),
		MinConf:       getEnvInt("BITCOIND_MIN_CONF", 1),

		MockConfirmAfter: getEnvDuration("MOCK_CONFIRM_AFTER", 2*time.Minute),
		OrderExpiry:      getEnvDuration("ORDER_EXPIRY", 24*time.Hour),
		PollInterval:     getEnvDuration("CONFIRMATION_POLL_INTERVAL", 30*time.Second),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		MessageSecret:    getEnv("MESSAGE_SECRET", "dev-message-secret"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		slog.Warn("invalid integer in environment, using default", "key", key)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("invalid duration in environment, using default", "key", key)
	}
	return fallback
}
