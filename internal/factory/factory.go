/*

Package factory is the protocol registry: it owns the venue-name →
adapter mapping and the catalogue of listed instruments. Both maps are
owner-gated on mutation and safe for concurrent reads.

*/

package factory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/0xhector27/ribbon-v1/internal/adapter"
	"github.com/0xhector27/ribbon-v1/internal/instrument"
	"github.com/0xhector27/ribbon-v1/internal/logger"
	"github.com/0xhector27/ribbon-v1/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNotAuthorized      = errors.New("caller is not the factory owner")
	ErrDuplicateName      = errors.New("instrument name already registered")
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrEmptyName          = errors.New("name cannot be empty")
)

// Factory registers adapters and instruments. It implements
// instrument.AdapterResolver so instruments it creates resolve their
// legs through it.
type Factory struct {
	mu          sync.Mutex
	owner       common.Address
	adapters    map[string]adapter.Protocol
	instruments map[string]*instrument.Instrument
	logger      zerolog.Logger
}

// NewFactory creates a factory owned by owner.
func NewFactory(owner common.Address) (*Factory, error) {
	if owner == types.ZeroAddress {
		return nil, types.ErrZeroAddress
	}
	return &Factory{
		owner:       owner,
		adapters:    make(map[string]adapter.Protocol),
		instruments: make(map[string]*instrument.Instrument),
		logger:      logger.GetForComponent("factory"),
	}, nil
}

// SetAdapter registers proto under name, replacing any existing entry.
// Owner only. Replacement is deliberate: it is how a venue adapter gets
// upgraded in place without relisting instruments.
func (f *Factory) SetAdapter(caller common.Address, name string, proto adapter.Protocol) error {
	if caller != f.owner {
		return ErrNotAuthorized
	}
	if name == "" {
		return ErrEmptyName
	}
	if proto == nil {
		return errors.New("adapter cannot be nil")
	}
	f.mu.Lock()
	_, replaced := f.adapters[name]
	f.adapters[name] = proto
	f.mu.Unlock()

	if replaced {
		f.logger.Warn().Str("venue", name).Msg("Adapter replaced")
	} else {
		f.logger.Info().Str("venue", name).Msg("Adapter registered")
	}
	return nil
}

// GetAdapter resolves a venue name, returning nil when no adapter is
// registered under it.
func (f *Factory) GetAdapter(name string) adapter.Protocol {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adapters[name]
}

// Adapters returns the registered venue names, sorted.
func (f *Factory) Adapters() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.adapters))
	for name := range f.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewInstrument lists a new instrument under cfg.Name. Owner only; the
// name must be unused. The factory injects itself as the instrument's
// adapter resolver.
func (f *Factory) NewInstrument(caller common.Address, cfg instrument.Config) (*instrument.Instrument, error) {
	if caller != f.owner {
		return nil, ErrNotAuthorized
	}
	if cfg.Name == "" {
		return nil, ErrEmptyName
	}

	f.mu.Lock()
	_, exists := f.instruments[cfg.Name]
	f.mu.Unlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, cfg.Name)
	}

	cfg.Resolver = f
	inst, err := instrument.NewInstrument(cfg)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	// Re-check under the lock; a concurrent listing may have won.
	if _, exists := f.instruments[cfg.Name]; exists {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, cfg.Name)
	}
	f.instruments[cfg.Name] = inst
	f.mu.Unlock()

	f.logger.Info().
		Str("name", cfg.Name).
		Str("symbol", cfg.Symbol).
		Time("expiry", cfg.Expiry).
		Msg("Instrument listed")
	return inst, nil
}

// GetInstrument looks up a listed instrument by name.
func (f *Factory) GetInstrument(name string) (*instrument.Instrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instruments[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, name)
	}
	return inst, nil
}

// Instruments returns the listed instrument names, sorted.
func (f *Factory) Instruments() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.instruments))
	for name := range f.instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
