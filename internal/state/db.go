package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// Integer token amounts are stored as NUMERIC(78,0): wide enough for
	// any 256-bit amount, exact, and sortable.
	schemaSQL := `
		CREATE TABLE IF NOT EXISTS rotation_snapshots (
			snapshot_id BIGSERIAL PRIMARY KEY,
			vault_name VARCHAR(255) NOT NULL,
			rotation_number INTEGER NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL,
			option_address VARCHAR(42) NOT NULL,
			locked_amount NUMERIC(78, 0) NOT NULL,
			total_balance NUMERIC(78, 0) NOT NULL,
			share_supply NUMERIC(78, 0) NOT NULL,
			closed_amount NUMERIC(78, 0) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_rotation_snapshots_vault
			ON rotation_snapshots (vault_name, rotation_number);

		CREATE TABLE IF NOT EXISTS instrument_positions (
			row_id BIGSERIAL PRIMARY KEY,
			instrument VARCHAR(255) NOT NULL,
			owner_address VARCHAR(42) NOT NULL,
			position_index INTEGER NOT NULL,
			exercised BOOLEAN NOT NULL DEFAULT FALSE,
			legs JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (instrument, owner_address, position_index)
		);
		CREATE INDEX IF NOT EXISTS idx_instrument_positions_owner
			ON instrument_positions (owner_address);

		CREATE TABLE IF NOT EXISTS action_receipts (
			receipt_id VARCHAR(64) PRIMARY KEY,
			action VARCHAR(64) NOT NULL,
			account VARCHAR(42) NOT NULL,
			amount NUMERIC(78, 0) NOT NULL,
			success BOOLEAN NOT NULL,
			message TEXT,
			receipt_timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_action_receipts_account
			ON action_receipts (account, receipt_timestamp);
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := ensureRotationCounterTable(); err != nil {
		return err
	}

	log.Info().Msg("Database schema ensured.")
	return nil
}
