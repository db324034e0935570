package state

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/0xhector27/ribbon-v1/internal/types"
)

// SaveRotationSnapshot persists one rotation snapshot and returns its id.
func SaveRotationSnapshot(vaultName string, snapshot types.RotationSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO rotation_snapshots (
			vault_name, rotation_number, snapshot_timestamp, option_address,
			locked_amount, total_balance, share_supply, closed_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING snapshot_id;
	`

	closed := snapshot.ClosedAmount
	if closed.IsNil() {
		closed = sdkmath.ZeroInt()
	}

	var snapshotID int64
	err := DB.QueryRow(
		query,
		vaultName, snapshot.RotationNumber, snapshot.Timestamp, snapshot.OptionAddress.Hex(),
		snapshot.LockedAmount.String(), snapshot.TotalBalance.String(),
		snapshot.ShareSupply.String(), closed.String(),
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save rotation snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Str("vault", vaultName).
		Int("rotation_number", snapshot.RotationNumber).
		Msg("Rotation snapshot saved to database")
	return snapshotID, nil
}

// GetRotationSnapshots loads the most recent snapshots for a vault,
// newest first.
func GetRotationSnapshots(vaultName string, limit int) ([]types.RotationSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT snapshot_id, rotation_number, snapshot_timestamp, option_address,
		       locked_amount, total_balance, share_supply, closed_amount
		FROM rotation_snapshots
		WHERE vault_name = $1
		ORDER BY rotation_number DESC
		LIMIT $2;
	`

	rows, err := DB.Query(query, vaultName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rotation snapshots: %w", err)
	}
	defer rows.Close()

	var out []types.RotationSnapshot
	for rows.Next() {
		var (
			s                                    types.RotationSnapshot
			optionAddr                           string
			lockedStr, totalStr, supplyStr, clsStr string
			ts                                   time.Time
		)
		if err := rows.Scan(&s.SnapshotID, &s.RotationNumber, &ts, &optionAddr,
			&lockedStr, &totalStr, &supplyStr, &clsStr); err != nil {
			return nil, fmt.Errorf("failed to scan rotation snapshot: %w", err)
		}
		s.Timestamp = ts
		s.OptionAddress = common.HexToAddress(optionAddr)
		var ok bool
		if s.LockedAmount, ok = sdkmath.NewIntFromString(lockedStr); !ok {
			return nil, fmt.Errorf("invalid locked_amount in row %d: %s", s.SnapshotID, lockedStr)
		}
		if s.TotalBalance, ok = sdkmath.NewIntFromString(totalStr); !ok {
			return nil, fmt.Errorf("invalid total_balance in row %d: %s", s.SnapshotID, totalStr)
		}
		if s.ShareSupply, ok = sdkmath.NewIntFromString(supplyStr); !ok {
			return nil, fmt.Errorf("invalid share_supply in row %d: %s", s.SnapshotID, supplyStr)
		}
		if s.ClosedAmount, ok = sdkmath.NewIntFromString(clsStr); !ok {
			return nil, fmt.Errorf("invalid closed_amount in row %d: %s", s.SnapshotID, clsStr)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
