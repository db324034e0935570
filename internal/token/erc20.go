/*

This file models the fungible-token boundary the protocol depends on.
Token contracts are external collaborators; the engine only needs the
strict ERC-20 surface (no fee-on-transfer, no rebasing), so they are
expressed as an interface with an in-memory reference ledger used by the
simulation backends and the tests.

*/

package token

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient token allowance")
	ErrInvalidAmount         = errors.New("token amount is invalid")
	ErrZeroAddress           = errors.New("token address cannot be zero")
)

// ERC20 is the minimum fungible-token surface the core calls. The from
// argument plays the role of msg.sender.
type ERC20 interface {
	Address() common.Address
	Symbol() string
	Decimals() int
	TotalSupply() sdkmath.Int
	BalanceOf(owner common.Address) sdkmath.Int
	Transfer(from, to common.Address, amount sdkmath.Int) error
	Approve(owner, spender common.Address, amount sdkmath.Int) error
	Allowance(owner, spender common.Address) sdkmath.Int
	TransferFrom(spender, from, to common.Address, amount sdkmath.Int) error
}

// Ledger is an in-memory ERC-20-equivalent balance ledger.
type Ledger struct {
	mu         sync.Mutex
	address    common.Address
	symbol     string
	decimals   int
	supply     sdkmath.Int
	balances   map[common.Address]sdkmath.Int
	allowances map[common.Address]map[common.Address]sdkmath.Int
}

// NewLedger creates a token ledger with a deterministic address derived
// from the symbol, so test fixtures and derived option identities are
// stable across runs.
func NewLedger(symbol string, decimals int) *Ledger {
	addr := common.BytesToAddress(crypto.Keccak256([]byte("token:" + symbol))[12:])
	return &Ledger{
		address:    addr,
		symbol:     symbol,
		decimals:   decimals,
		supply:     sdkmath.ZeroInt(),
		balances:   make(map[common.Address]sdkmath.Int),
		allowances: make(map[common.Address]map[common.Address]sdkmath.Int),
	}
}

func (l *Ledger) Address() common.Address { return l.address }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) Decimals() int           { return l.decimals }

func (l *Ledger) TotalSupply() sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply
}

func (l *Ledger) BalanceOf(owner common.Address) sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceOf(owner)
}

func (l *Ledger) balanceOf(owner common.Address) sdkmath.Int {
	if bal, ok := l.balances[owner]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// Mint credits newly issued tokens to an account. Only the simulation
// backends and tests call this; real token supply is external.
func (l *Ledger) Mint(to common.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] = l.balanceOf(to).Add(amount)
	l.supply = l.supply.Add(amount)
	return nil
}

// Burn destroys tokens held by an account.
func (l *Ledger) Burn(from common.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceOf(from)
	if bal.LT(amount) {
		return fmt.Errorf("%w: burn %s exceeds balance %s of %s", ErrInsufficientBalance, amount, bal, l.symbol)
	}
	l.balances[from] = bal.Sub(amount)
	l.supply = l.supply.Sub(amount)
	return nil
}

func (l *Ledger) Transfer(from, to common.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(from, to, amount)
}

func (l *Ledger) transfer(from, to common.Address, amount sdkmath.Int) error {
	bal := l.balanceOf(from)
	if bal.LT(amount) {
		return fmt.Errorf("%w: transfer %s exceeds balance %s of %s", ErrInsufficientBalance, amount, bal, l.symbol)
	}
	l.balances[from] = bal.Sub(amount)
	l.balances[to] = l.balanceOf(to).Add(amount)
	return nil
}

func (l *Ledger) Approve(owner, spender common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[common.Address]sdkmath.Int)
	}
	l.allowances[owner][spender] = amount
	return nil
}

func (l *Ledger) Allowance(owner, spender common.Address) sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) TransferFrom(spender, from, to common.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	allowance := sdkmath.ZeroInt()
	if m, ok := l.allowances[from]; ok {
		if a, ok := m[spender]; ok {
			allowance = a
		}
	}
	if allowance.LT(amount) {
		return fmt.Errorf("%w: spend %s exceeds allowance %s of %s", ErrInsufficientAllowance, amount, allowance, l.symbol)
	}
	if err := l.transfer(from, to, amount); err != nil {
		return err
	}
	l.allowances[from][spender] = allowance.Sub(amount)
	return nil
}

func validateAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}
