package vault

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xhector27/ribbon-v1/internal/types"
)

// Vault defines the interface for the share-accounting and
// capital-rotation engine. This abstracts away the concrete
// implementation so the manager loop, web server and tests can run
// against any vault backend.
type Vault interface {
	// Deposit credits caller with shares against amount of the asset.
	Deposit(from common.Address, amount sdkmath.Int) (sdkmath.Int, error)

	// DepositETH wraps native currency into the asset and deposits it.
	// Only valid when the vault asset is the wrapped native token.
	DepositETH(from common.Address, amount sdkmath.Int) (sdkmath.Int, error)

	// DepositYieldToken deposits collateral-wrapper tokens directly,
	// valued at the current exchange rate.
	DepositYieldToken(from common.Address, amount sdkmath.Int) (sdkmath.Int, error)

	// Withdraw burns shares and pays out the proportional pool value in
	// the asset, net of the instant withdrawal fee.
	Withdraw(from common.Address, shares sdkmath.Int) (sdkmath.Int, error)

	// WithdrawETH is Withdraw paying out in native currency.
	WithdrawETH(from common.Address, shares sdkmath.Int) (sdkmath.Int, error)

	// WithdrawYieldToken is Withdraw paying out in collateral-wrapper
	// tokens instead of unwrapping.
	WithdrawYieldToken(from common.Address, shares sdkmath.Int) (sdkmath.Int, error)

	// CommitAndClose stages the next option and, if a current short
	// exists and is past expiry, closes it.
	CommitAndClose(caller common.Address, terms types.OptionTerms) error

	// CloseShort settles the current short on its own. Usable as an
	// emergency path independent of staging a next option.
	CloseShort(caller common.Address) (sdkmath.Int, error)

	// RollToNextOption promotes the staged option to current, wraps free
	// balance into the yield wrapper and opens the short.
	RollToNextOption(caller common.Address) error

	// Views. Any two independently computed views of total pool value
	// must agree exactly given the same state.
	TotalBalance() (sdkmath.Int, error)
	AssetBalance() sdkmath.Int
	AvailableToWithdraw() (sdkmath.Int, error)
	WithdrawAmountWithShares(shares sdkmath.Int) (sdkmath.Int, sdkmath.Int, error)
	MaxWithdrawableShares(account common.Address) (sdkmath.Int, error)
	AccountVaultBalance(account common.Address) (sdkmath.Int, error)
	AssetAmountToShares(amount sdkmath.Int) (sdkmath.Int, error)
	ShareBalance(account common.Address) sdkmath.Int
	TotalShares() sdkmath.Int
	LockedAmount() sdkmath.Int
	CurrentOption() common.Address
	NextOptionReadyAt() time.Time

	// Snapshot captures the rotation state for persistence.
	Snapshot() (types.RotationSnapshot, error)
}
