package venue

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// tokenLedger is the balance ledger of one option-token series. Series
// tokens live and die inside the venue, so this stays private rather
// than going through the shared token registry.
type tokenLedger struct {
	mu       sync.Mutex
	address  common.Address
	supply   sdkmath.Int
	balances map[common.Address]sdkmath.Int
}

func newSeriesToken(addr common.Address) *tokenLedger {
	return &tokenLedger{
		address:  addr,
		supply:   sdkmath.ZeroInt(),
		balances: make(map[common.Address]sdkmath.Int),
	}
}

func (t *tokenLedger) balanceOf(owner common.Address) sdkmath.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if bal, ok := t.balances[owner]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

func (t *tokenLedger) mint(to common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("series token: invalid mint amount")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := sdkmath.ZeroInt()
	if b, ok := t.balances[to]; ok {
		bal = b
	}
	t.balances[to] = bal.Add(amount)
	t.supply = t.supply.Add(amount)
	return nil
}

func (t *tokenLedger) burn(from common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("series token: invalid burn amount")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := sdkmath.ZeroInt()
	if b, ok := t.balances[from]; ok {
		bal = b
	}
	if bal.LT(amount) {
		return fmt.Errorf("series token: burn %s exceeds balance %s", amount, bal)
	}
	t.balances[from] = bal.Sub(amount)
	t.supply = t.supply.Sub(amount)
	return nil
}

func (t *tokenLedger) transfer(from, to common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("series token: invalid transfer amount")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := sdkmath.ZeroInt()
	if b, ok := t.balances[from]; ok {
		bal = b
	}
	if bal.LT(amount) {
		return fmt.Errorf("series token: transfer %s exceeds balance %s", amount, bal)
	}
	t.balances[from] = bal.Sub(amount)
	toBal := sdkmath.ZeroInt()
	if b, ok := t.balances[to]; ok {
		toBal = b
	}
	t.balances[to] = toBal.Add(amount)
	return nil
}
