/*

This file defines the price-oracle boundary. The engine never invents a
price: a missing, stale or non-positive quote is an explicit failure,
not a silent zero.

Prices are quoted per whole unit of the asset, in strike-currency terms,
as 18-decimal fixed point.

*/

package oracle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNoPrice      = errors.New("no price available for asset")
	ErrStalePrice   = errors.New("price is stale")
	ErrInvalidPrice = errors.New("price is invalid")
)

// PriceOracle is the minimum surface the core requires.
type PriceOracle interface {
	// LatestPrice returns the current wad price of one whole unit of
	// asset and the timestamp it was observed at.
	LatestPrice(asset common.Address) (sdkmath.Int, time.Time, error)
}

// StaticOracle is an in-memory oracle with settable prices, used by the
// simulation backends and the tests.
type StaticOracle struct {
	mu        sync.Mutex
	prices    map[common.Address]quote
	staleness time.Duration // zero disables the staleness check
}

type quote struct {
	price sdkmath.Int
	at    time.Time
}

// NewStaticOracle creates an oracle with the given staleness window.
func NewStaticOracle(staleness time.Duration) *StaticOracle {
	return &StaticOracle{
		prices:    make(map[common.Address]quote),
		staleness: staleness,
	}
}

// SetPrice records a wad price observation for asset at the current time.
func (o *StaticOracle) SetPrice(asset common.Address, price sdkmath.Int) error {
	if price.IsNil() || !price.IsPositive() {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[asset] = quote{price: price, at: time.Now()}
	return nil
}

func (o *StaticOracle) LatestPrice(asset common.Address) (sdkmath.Int, time.Time, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	q, ok := o.prices[asset]
	if !ok {
		return sdkmath.ZeroInt(), time.Time{}, fmt.Errorf("%w: %s", ErrNoPrice, asset.Hex())
	}
	if o.staleness > 0 && time.Since(q.at) > o.staleness {
		return sdkmath.ZeroInt(), q.at, fmt.Errorf("%w: %s observed %s ago", ErrStalePrice, asset.Hex(), time.Since(q.at))
	}
	if q.price.IsNil() || !q.price.IsPositive() {
		return sdkmath.ZeroInt(), q.at, ErrInvalidPrice
	}
	return q.price, q.at, nil
}
