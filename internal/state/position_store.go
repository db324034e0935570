package state

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/0xhector27/ribbon-v1/internal/types"
)

// SaveInstrumentPosition mirrors one position into the database. The
// in-memory ledger stays authoritative; the mirror exists for audit and
// the dashboard. Upsert keyed by (instrument, owner, index) so the
// exercised flag flip is recorded by re-saving.
func SaveInstrumentPosition(instrumentName string, owner common.Address, positionIndex int, p types.InstrumentPosition) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	legsJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal position legs: %w", err)
	}

	query := `
		INSERT INTO instrument_positions (
			instrument, owner_address, position_index, exercised, legs, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (instrument, owner_address, position_index)
		DO UPDATE SET exercised = EXCLUDED.exercised, legs = EXCLUDED.legs;
	`
	if _, err := DB.Exec(query, instrumentName, owner.Hex(), positionIndex,
		p.Exercised, legsJSON, p.CreatedAt); err != nil {
		return fmt.Errorf("failed to save instrument position: %w", err)
	}

	log.Debug().
		Str("instrument", instrumentName).
		Str("owner", owner.Hex()).
		Int("index", positionIndex).
		Bool("exercised", p.Exercised).
		Msg("Instrument position mirrored to database")
	return nil
}

// GetInstrumentPositions loads an owner's mirrored positions across all
// instruments, oldest first.
func GetInstrumentPositions(owner common.Address) ([]types.InstrumentPosition, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT legs FROM instrument_positions
		WHERE owner_address = $1
		ORDER BY instrument, position_index;
	`
	rows, err := DB.Query(query, owner.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument positions: %w", err)
	}
	defer rows.Close()

	var out []types.InstrumentPosition
	for rows.Next() {
		var legsJSON []byte
		if err := rows.Scan(&legsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan instrument position: %w", err)
		}
		var p types.InstrumentPosition
		if err := json.Unmarshal(legsJSON, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal instrument position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
