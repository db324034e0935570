package state

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/0xhector27/ribbon-v1/internal/types"
)

// SaveActionReceipt persists one action receipt.
func SaveActionReceipt(r types.ActionReceipt) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	amount := r.Amount
	if amount.IsNil() {
		amount = sdkmath.ZeroInt()
	}

	query := `
		INSERT INTO action_receipts (
			receipt_id, action, account, amount, success, message, receipt_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	if _, err := DB.Exec(query, r.ReceiptID, r.Action, r.Account.Hex(),
		amount.String(), r.Success, r.Message, r.Timestamp); err != nil {
		return fmt.Errorf("failed to save action receipt: %w", err)
	}

	log.Debug().
		Str("receipt_id", r.ReceiptID).
		Str("action", r.Action).
		Bool("success", r.Success).
		Msg("Action receipt saved")
	return nil
}

// GetActionReceipts loads the most recent receipts for an account,
// newest first.
func GetActionReceipts(account common.Address, limit int) ([]types.ActionReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT receipt_id, action, account, amount, success, message, receipt_timestamp
		FROM action_receipts
		WHERE account = $1
		ORDER BY receipt_timestamp DESC
		LIMIT $2;
	`
	rows, err := DB.Query(query, account.Hex(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query action receipts: %w", err)
	}
	defer rows.Close()

	var out []types.ActionReceipt
	for rows.Next() {
		var (
			r         types.ActionReceipt
			acct      string
			amountStr string
			ts        time.Time
		)
		if err := rows.Scan(&r.ReceiptID, &r.Action, &acct, &amountStr, &r.Success, &r.Message, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan action receipt: %w", err)
		}
		r.Account = common.HexToAddress(acct)
		r.Timestamp = ts
		var ok bool
		if r.Amount, ok = sdkmath.NewIntFromString(amountStr); !ok {
			return nil, fmt.Errorf("invalid amount in receipt %s: %s", r.ReceiptID, amountStr)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
