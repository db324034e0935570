package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment
// variables. These are populated at startup by LoadConfig.
var (
	// OwnerAddress is the sole address allowed to change roles and create instruments.
	OwnerAddress common.Address
	// ManagerAddress is the sole address allowed to rotate positions and set fee/cap.
	ManagerAddress common.Address
	// FeeRecipientAddress receives instant withdrawal fees.
	FeeRecipientAddress common.Address

	// VaultCap is the maximum total pool value, as an 18-decimal string.
	VaultCap string
	// WithdrawalFee is the instant withdrawal fee fraction, e.g. "0.005".
	WithdrawalFee string

	// FeedBaseURL is the spot-price feed endpoint. Empty disables the feed
	// and the process runs against the static oracle.
	FeedBaseURL string

	// WebPort is the dashboard/API listen port.
	WebPort string

	// DBHost, DBPort etc. are the PostgreSQL connection settings.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. Role addresses are required; the rest default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	owner, err := getEnvAsAddress("RVM_OWNER_ADDRESS")
	if err != nil {
		return err
	}
	OwnerAddress = owner

	manager, err := getEnvAsAddress("RVM_MANAGER_ADDRESS")
	if err != nil {
		return err
	}
	ManagerAddress = manager

	feeRecipient, err := getEnvAsAddress("RVM_FEE_RECIPIENT_ADDRESS")
	if err != nil {
		return err
	}
	FeeRecipientAddress = feeRecipient

	VaultCap = getEnvOr("RVM_VAULT_CAP", "1000000000000000000000") // 1000 units
	WithdrawalFee = getEnvOr("RVM_WITHDRAWAL_FEE", "0.005")
	FeedBaseURL = os.Getenv("RVM_FEED_URL")
	WebPort = getEnvOr("WEB_PORT", "8080")

	DBHost = getEnvOr("DB_HOST", "localhost")
	DBPort = getEnvAsInt("DB_PORT", 5432)
	DBUser = getEnvOr("DB_USER", "postgres")
	DBPassword = os.Getenv("DB_PASSWORD")
	DBName = getEnvOr("DB_NAME", "rvm")
	DBSSLMode = getEnvOr("DB_SSLMODE", "disable")

	log.Debug().
		Str("owner", OwnerAddress.Hex()).
		Str("manager", ManagerAddress.Hex()).
		Str("cap", VaultCap).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable with a default.
func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsAddress retrieves an environment variable as a hex address.
func getEnvAsAddress(key string) (common.Address, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, errors.New("environment variable " + key + " must be a valid hex address, got: " + valueStr)
	}
	return common.HexToAddress(valueStr), nil
}

// getEnvAsInt retrieves an environment variable as an int with a default.
func getEnvAsInt(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}
