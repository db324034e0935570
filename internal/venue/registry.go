/*

Package venue contains the venue-side black boxes the protocol adapters
call: a non-fungible options market identifying positions by integer ID,
and a fungible tokenized-option protocol identifying positions by option
token balances. Real deployments talk to on-chain contracts; these
in-memory reference implementations carry the same surface and are what
the simulation mode and the tests run against.

*/

package venue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xhector27/ribbon-v1/internal/token"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnknownToken        = errors.New("token is not registered")
	ErrInsufficientPayment = errors.New("payment is below required cost")
	ErrOptionNotFound      = errors.New("option not found")
	ErrAlreadyExercised    = errors.New("option already exercised")
	ErrAlreadySettled      = errors.New("short already settled")
	ErrOptionExpired       = errors.New("option is expired")
	ErrOptionNotExpired    = errors.New("option is not expired yet")
	ErrUnsupportedAsset    = errors.New("asset not supported by venue")
	ErrNoShortPosition     = errors.New("no open short position")
)

// TokenRegistry resolves token addresses to their in-memory ledgers.
// Venues mint and move balances through it.
type TokenRegistry struct {
	mu      sync.Mutex
	ledgers map[common.Address]*token.Ledger
}

func NewTokenRegistry(ledgers ...*token.Ledger) *TokenRegistry {
	r := &TokenRegistry{ledgers: make(map[common.Address]*token.Ledger)}
	for _, l := range ledgers {
		r.ledgers[l.Address()] = l
	}
	return r
}

// Register adds a ledger to the registry. Later registrations overwrite.
func (r *TokenRegistry) Register(l *token.Ledger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers[l.Address()] = l
}

// Get resolves a token address, failing loudly for unknown tokens.
func (r *TokenRegistry) Get(addr common.Address) (*token.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
	}
	return l, nil
}
