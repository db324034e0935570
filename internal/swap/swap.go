/*

This file models the settlement/swap counterparty: a contract that takes
a pre-signed order (maker/taker tokens, amounts, signature) and executes
the token swap atomically. The core only ever approves token spend to it
and submits orders; it never inspects counterparty internals.

*/

package swap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/0xhector27/ribbon-v1/internal/logger"
	"github.com/0xhector27/ribbon-v1/internal/venue"
)

// Error definitions for zero-tolerance error handling
var (
	ErrOrderExpired   = errors.New("order is expired")
	ErrOrderFilled    = errors.New("order already filled")
	ErrOrderUnsigned  = errors.New("order has no signature")
	ErrInvalidAmounts = errors.New("order amounts are invalid")
)

// Order is a pre-signed atomic swap: maker pays MakerAmount of
// MakerToken in exchange for TakerAmount of TakerToken.
type Order struct {
	ID          string         `json:"id"`
	Maker       common.Address `json:"maker"`
	Taker       common.Address `json:"taker"`
	MakerToken  common.Address `json:"maker_token"`
	TakerToken  common.Address `json:"taker_token"`
	MakerAmount sdkmath.Int    `json:"maker_amount"`
	TakerAmount sdkmath.Int    `json:"taker_amount"`
	Expiry      time.Time      `json:"expiry"`
	Nonce       uint64         `json:"nonce"`
	Signature   []byte         `json:"signature"`
}

// NewOrder creates an order with a fresh id.
func NewOrder(maker, taker, makerToken, takerToken common.Address, makerAmount, takerAmount sdkmath.Int, expiry time.Time, nonce uint64) Order {
	return Order{
		ID:          uuid.New().String(),
		Maker:       maker,
		Taker:       taker,
		MakerToken:  makerToken,
		TakerToken:  takerToken,
		MakerAmount: makerAmount,
		TakerAmount: takerAmount,
		Expiry:      expiry,
		Nonce:       nonce,
	}
}

// Hash is the canonical order digest the maker signs.
func (o *Order) Hash() common.Hash {
	var nonce, expiry [8]byte
	binary.BigEndian.PutUint64(nonce[:], o.Nonce)
	binary.BigEndian.PutUint64(expiry[:], uint64(o.Expiry.Unix()))
	return crypto.Keccak256Hash(
		o.Maker.Bytes(),
		o.Taker.Bytes(),
		o.MakerToken.Bytes(),
		o.TakerToken.Bytes(),
		o.MakerAmount.BigInt().Bytes(),
		o.TakerAmount.BigInt().Bytes(),
		nonce[:],
		expiry[:],
	)
}

// Counterparty is the surface the core requires from the settlement
// contract.
type Counterparty interface {
	Address() common.Address
	// Fill executes the swap. Both sides must have approved the
	// counterparty for their leg.
	Fill(order Order) error
}

// MemSwap is the in-memory fill engine.
type MemSwap struct {
	mu     sync.Mutex
	tokens *venue.TokenRegistry
	filled map[common.Hash]bool
	addr   common.Address
}

func NewMemSwap(tokens *venue.TokenRegistry) *MemSwap {
	return &MemSwap{
		tokens: tokens,
		filled: make(map[common.Hash]bool),
		addr:   common.BytesToAddress(crypto.Keccak256([]byte("swap:settlement"))[12:]),
	}
}

func (s *MemSwap) Address() common.Address { return s.addr }

func (s *MemSwap) Fill(order Order) error {
	swapLogger := logger.GetForComponent("swap_settlement")

	if len(order.Signature) == 0 {
		return ErrOrderUnsigned
	}
	if !order.Expiry.After(time.Now()) {
		return fmt.Errorf("%w: %s", ErrOrderExpired, order.Expiry)
	}
	if order.MakerAmount.IsNil() || order.TakerAmount.IsNil() ||
		!order.MakerAmount.IsPositive() || !order.TakerAmount.IsPositive() {
		return ErrInvalidAmounts
	}

	hash := order.Hash()
	s.mu.Lock()
	if s.filled[hash] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrOrderFilled, hash.Hex())
	}
	s.filled[hash] = true
	s.mu.Unlock()

	makerLedger, err := s.tokens.Get(order.MakerToken)
	if err != nil {
		return err
	}
	takerLedger, err := s.tokens.Get(order.TakerToken)
	if err != nil {
		return err
	}

	// Maker leg first; if the taker leg then fails, unwind the maker leg
	// so the fill stays atomic.
	if err := makerLedger.TransferFrom(s.addr, order.Maker, order.Taker, order.MakerAmount); err != nil {
		s.unmark(hash)
		return err
	}
	if err := takerLedger.TransferFrom(s.addr, order.Taker, order.Maker, order.TakerAmount); err != nil {
		if undoErr := makerLedger.Transfer(order.Taker, order.Maker, order.MakerAmount); undoErr != nil {
			return errors.Join(err, undoErr)
		}
		s.unmark(hash)
		return err
	}

	swapLogger.Info().
		Str("order", order.ID).
		Str("maker", order.Maker.Hex()).
		Str("taker", order.Taker.Hex()).
		Str("makerAmount", order.MakerAmount.String()).
		Str("takerAmount", order.TakerAmount.String()).
		Msg("Order filled")
	return nil
}

func (s *MemSwap) unmark(hash common.Hash) {
	s.mu.Lock()
	delete(s.filled, hash)
	s.mu.Unlock()
}
