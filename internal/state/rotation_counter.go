/*

This file manages the persistent global rotation counter. The counter is
stored in the database so rotation numbering stays continuous across
process restarts.

*/

package state

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// ensureRotationCounterTable creates the rotation_counter table if it
// doesn't exist.
func ensureRotationCounterTable() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS rotation_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_rotation INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO rotation_counter (id, current_rotation)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`

	_, err := DB.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create rotation_counter table: %w", err)
	}

	log.Debug().Msg("Ensured rotation_counter table exists")
	return nil
}

// GetCurrentRotationNumber retrieves the current rotation number.
func GetCurrentRotationNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT current_rotation FROM rotation_counter WHERE id = 1;`

	var current int
	if err := DB.QueryRow(query).Scan(&current); err != nil {
		return 0, fmt.Errorf("failed to read rotation counter: %w", err)
	}
	return current, nil
}

// IncrementRotationNumber bumps the counter and returns the new value.
func IncrementRotationNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		UPDATE rotation_counter
		SET current_rotation = current_rotation + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_rotation;
	`

	var current int
	if err := DB.QueryRow(query).Scan(&current); err != nil {
		return 0, fmt.Errorf("failed to increment rotation counter: %w", err)
	}

	log.Debug().Int("rotation", current).Msg("Rotation counter incremented")
	return current, nil
}
