/*

This file contains the HTTP price-feed client. It polls a JSON spot-price
endpoint per configured asset and caches observations behind the
PriceOracle interface. Feed values arrive as decimal strings and are
normalized to 18-decimal fixed point at this boundary; nothing past this
package touches a floating-point price.

*/

package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/0xhector27/ribbon-v1/internal/logger"
)

const feedRequestTimeout = 10 * time.Second

// feedResponse is the JSON shape of the spot-price endpoint.
type feedResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// FeedOracle serves prices fetched over HTTP, with a freshness TTL.
type FeedOracle struct {
	mu      sync.Mutex
	client  *http.Client
	baseURL string
	symbols map[common.Address]string
	cache   map[common.Address]quote
	ttl     time.Duration
}

// NewFeedOracle creates a feed client. symbols maps asset addresses to
// the feed's ticker symbols; ttl is how long a fetched price stays fresh.
func NewFeedOracle(baseURL string, symbols map[common.Address]string, ttl time.Duration) *FeedOracle {
	return &FeedOracle{
		client:  &http.Client{Timeout: feedRequestTimeout},
		baseURL: baseURL,
		symbols: symbols,
		cache:   make(map[common.Address]quote),
		ttl:     ttl,
	}
}

func (f *FeedOracle) LatestPrice(asset common.Address) (sdkmath.Int, time.Time, error) {
	f.mu.Lock()
	cached, ok := f.cache[asset]
	f.mu.Unlock()
	if ok && time.Since(cached.at) <= f.ttl {
		return cached.price, cached.at, nil
	}

	symbol, ok := f.symbols[asset]
	if !ok {
		return sdkmath.ZeroInt(), time.Time{}, fmt.Errorf("%w: %s", ErrNoPrice, asset.Hex())
	}

	price, err := f.fetch(symbol)
	if err != nil {
		// A dead feed with a still-plausible cache is reported as stale,
		// never silently served.
		if ok {
			return sdkmath.ZeroInt(), cached.at, fmt.Errorf("%w: fetch failed: %v", ErrStalePrice, err)
		}
		return sdkmath.ZeroInt(), time.Time{}, err
	}

	now := time.Now()
	f.mu.Lock()
	f.cache[asset] = quote{price: price, at: now}
	f.mu.Unlock()
	return price, now, nil
}

func (f *FeedOracle) fetch(symbol string) (sdkmath.Int, error) {
	feedLogger := logger.GetForComponent("price_feed")

	url := fmt.Sprintf("%s/price?symbol=%s", f.baseURL, symbol)
	resp, err := f.client.Get(url)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("price feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sdkmath.ZeroInt(), fmt.Errorf("price feed returned status %d for %s", resp.StatusCode, symbol)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read price feed response: %w", err)
	}

	var parsed feedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to decode price feed response: %w", err)
	}

	dec, err := decimal.NewFromString(parsed.Price)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q", ErrInvalidPrice, parsed.Price)
	}
	if dec.Sign() <= 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s quoted %s", ErrInvalidPrice, symbol, dec)
	}

	// Normalize to 18-decimal fixed point.
	wad := dec.Shift(18).Truncate(0)
	price, ok := sdkmath.NewIntFromString(wad.String())
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s does not fit fixed point", ErrInvalidPrice, wad)
	}

	feedLogger.Debug().Str("symbol", symbol).Str("price", dec.String()).Msg("Fetched spot price")
	return price, nil
}
