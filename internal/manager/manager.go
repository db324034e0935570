/*

Package manager runs the automated rotation loop: each cycle it reads
the spot price, derives the next option terms, commits them on the
vault and, once the rollover delay has elapsed, rolls the pool into the
new short. Every state change is persisted as a snapshot and an action
receipt.

A cycle never kills the process. Failures are logged, the receipt
records them, and the next tick retries.

*/

package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/0xhector27/ribbon-v1/internal/config"
	"github.com/0xhector27/ribbon-v1/internal/logger"
	"github.com/0xhector27/ribbon-v1/internal/oracle"
	"github.com/0xhector27/ribbon-v1/internal/state"
	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/vault"
)

// Config holds the configuration for creating a new Manager instance.
type Config struct {
	VaultName     string
	Vault         vault.Vault
	Oracle        oracle.PriceOracle
	ManagerAddr   common.Address
	OptionType    types.OptionType
	Underlying    common.Address
	StrikeAsset   common.Address
	Collateral    common.Address
	PaymentToken  common.Address
	Tenor         time.Duration     // lifetime of each sold option
	StrikeOffset  sdkmath.LegacyDec // fractional distance of the strike from spot
	StrikeRound   sdkmath.Int       // strikes are floored to a multiple of this; zero disables
}

// Manager is the automated rotation engine for one vault.
type Manager struct {
	cfg        Config
	logger     zerolog.Logger
	cycleCount int
}

// NewManager creates a manager with dependency validation.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Vault == nil {
		return nil, errors.New("vault cannot be nil")
	}
	if cfg.Oracle == nil {
		return nil, errors.New("oracle cannot be nil")
	}
	if cfg.VaultName == "" {
		return nil, errors.New("vault name cannot be empty")
	}
	if !cfg.OptionType.Valid() {
		return nil, types.ErrInvalidOptionType
	}
	if cfg.Tenor < config.MinTimeToExpiry {
		return nil, fmt.Errorf("tenor %s is below the minimum time to expiry", cfg.Tenor)
	}
	if cfg.StrikeOffset.IsNil() || cfg.StrikeOffset.IsNegative() || cfg.StrikeOffset.GTE(sdkmath.LegacyOneDec()) {
		return nil, errors.New("strike offset must be in [0, 1)")
	}
	return &Manager{
		cfg:    cfg,
		logger: logger.GetForComponent("rotation_manager").With().Str("vault", cfg.VaultName).Logger(),
	}, nil
}

// RunLoop starts the main rotation loop with the specified interval.
func (m *Manager) RunLoop(ctx context.Context, interval time.Duration) {
	m.logger.Info().
		Dur("interval", interval).
		Msg("Starting rotation manager loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	m.cycleCount++
	m.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Rotation loop stopped due to context cancellation")
			return
		case <-ticker.C:
			m.cycleCount++
			m.RunCycle(ctx)
		}
	}
}

// RunCycle executes one rotation cycle: commit when nothing is staged,
// roll when the staged option is ready.
func (m *Manager) RunCycle(ctx context.Context) {
	cycleID := uuid.New().String()
	cycleLogger := m.logger.With().Str("cycle_id", cycleID).Int("cycle", m.cycleCount).Logger()
	cycleLogger.Info().Msg("--- Starting rotation cycle ---")

	if ctx.Err() != nil {
		return
	}

	readyAt := m.cfg.Vault.NextOptionReadyAt()
	current := m.cfg.Vault.CurrentOption()
	now := time.Now()

	switch {
	case readyAt.IsZero():
		// Nothing staged: derive terms from spot and commit. This also
		// settles an expired short.
		m.commitNext(cycleLogger)

	case current == types.ZeroAddress && !now.Before(readyAt):
		m.roll(cycleLogger)

	case current == types.ZeroAddress:
		cycleLogger.Info().Time("readyAt", readyAt).Msg("Waiting for rollover delay")

	default:
		cycleLogger.Info().Str("option", current.Hex()).Msg("Short open, waiting for expiry")
		// Opportunistic settle: CommitAndClose stays staged, so just try
		// closing directly once the option is past expiry.
		if released, err := m.cfg.Vault.CloseShort(m.cfg.ManagerAddr); err == nil {
			cycleLogger.Info().Str("released", released.String()).Msg("Expired short settled")
			m.saveReceipt("CLOSE", released, true, "")
		} else if !errors.Is(err, vault.ErrOptionNotExpired) {
			cycleLogger.Error().Err(err).Msg("Short settlement failed")
			m.saveReceipt("CLOSE", sdkmath.ZeroInt(), false, err.Error())
		}
	}

	cycleLogger.Info().Msg("--- Rotation cycle complete ---")
}

// commitNext derives the next option terms from the current spot price
// and commits them on the vault.
func (m *Manager) commitNext(cycleLogger zerolog.Logger) {
	spot, at, err := m.cfg.Oracle.LatestPrice(m.cfg.Underlying)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to fetch spot price")
		return
	}
	cycleLogger.Info().Str("spot", spot.String()).Time("asOf", at).Msg("Spot price fetched")

	terms := types.OptionTerms{
		Underlying:      m.cfg.Underlying,
		StrikeAsset:     m.cfg.StrikeAsset,
		CollateralAsset: m.cfg.Collateral,
		Expiry:          time.Now().Add(m.cfg.Tenor),
		StrikePrice:     m.strikeFromSpot(spot),
		OptionType:      m.cfg.OptionType,
		PaymentToken:    m.cfg.PaymentToken,
	}

	if err := m.cfg.Vault.CommitAndClose(m.cfg.ManagerAddr, terms); err != nil {
		if errors.Is(err, vault.ErrOptionNotExpired) {
			cycleLogger.Info().Msg("Current short still live, commit deferred")
			return
		}
		cycleLogger.Error().Err(err).Msg("Commit failed")
		m.saveReceipt("COMMIT", sdkmath.ZeroInt(), false, err.Error())
		return
	}

	cycleLogger.Info().
		Str("strike", terms.StrikePrice.String()).
		Time("expiry", terms.Expiry).
		Msg("Next option committed")
	m.saveReceipt("COMMIT", terms.StrikePrice, true, "")
}

// roll moves the pool into the staged option and persists the snapshot.
func (m *Manager) roll(cycleLogger zerolog.Logger) {
	if err := m.cfg.Vault.RollToNextOption(m.cfg.ManagerAddr); err != nil {
		cycleLogger.Error().Err(err).Msg("Roll failed")
		m.saveReceipt("ROLL", sdkmath.ZeroInt(), false, err.Error())
		return
	}

	snapshot, err := m.cfg.Vault.Snapshot()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to capture rotation snapshot")
		return
	}
	if rotation, err := state.IncrementRotationNumber(); err == nil {
		snapshot.RotationNumber = rotation
	} else {
		cycleLogger.Warn().Err(err).Msg("Rotation counter unavailable, using in-memory number")
	}
	if _, err := state.SaveRotationSnapshot(m.cfg.VaultName, snapshot); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to persist rotation snapshot")
	}

	cycleLogger.Info().
		Int("rotation", snapshot.RotationNumber).
		Str("locked", snapshot.LockedAmount.String()).
		Str("total", snapshot.TotalBalance.String()).
		Msg("Rolled into next option")
	m.saveReceipt("ROLL", snapshot.LockedAmount, true, "")
}

// strikeFromSpot derives the strike: calls sell above spot, puts below,
// floored to the configured rounding increment.
func (m *Manager) strikeFromSpot(spot sdkmath.Int) sdkmath.Int {
	var strike sdkmath.Int
	if m.cfg.OptionType == types.Call {
		strike = sdkmath.LegacyOneDec().Add(m.cfg.StrikeOffset).MulInt(spot).TruncateInt()
	} else {
		strike = sdkmath.LegacyOneDec().Sub(m.cfg.StrikeOffset).MulInt(spot).TruncateInt()
	}
	if !m.cfg.StrikeRound.IsNil() && m.cfg.StrikeRound.IsPositive() {
		strike = strike.Sub(strike.Mod(m.cfg.StrikeRound))
	}
	return strike
}

// saveReceipt records the cycle action. Persistence failures are logged
// and swallowed; receipts are an audit trail, not a dependency.
func (m *Manager) saveReceipt(action string, amount sdkmath.Int, success bool, message string) {
	receipt := types.ActionReceipt{
		ReceiptID: uuid.New().String(),
		Action:    action,
		Account:   m.cfg.ManagerAddr,
		Amount:    amount,
		Success:   success,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if err := state.SaveActionReceipt(receipt); err != nil {
		m.logger.Warn().Err(err).Str("action", action).Msg("Failed to persist action receipt")
	}
}
