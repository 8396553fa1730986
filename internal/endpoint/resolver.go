// Package endpoint tracks which backend address orbit talks to first.
package endpoint

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Persister stores the active address across restarts. *prefs.Store
// implements it.
type Persister interface {
	ActiveAddress() string
	SaveActiveAddress(address string) error
}

// Resolver holds the primary and fallback addresses and which of the two is
// currently preferred. The active address is always one of the two.
type Resolver struct {
	primary  string
	fallback string
	store    Persister
	logger   *zap.Logger

	mu     sync.RWMutex
	active string
}

// NewResolver starts from the persisted address when it is one of the
// configured pair, otherwise from primary. store may be nil.
func NewResolver(primary, fallback string, store Persister, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		primary:  strings.TrimSpace(primary),
		fallback: strings.TrimSpace(fallback),
		store:    store,
		logger:   logger,
	}
	r.active = r.primary
	if store != nil {
		if saved, ok := r.match(store.ActiveAddress()); ok {
			r.active = saved
		}
	}
	return r
}

// Primary returns the configured primary address.
func (r *Resolver) Primary() string { return r.primary }

// Fallback returns the configured fallback address.
func (r *Resolver) Fallback() string { return r.fallback }

// Current returns the address to try first.
func (r *Resolver) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Promote makes address the active one and persists it. Addresses outside
// the configured pair are ignored. A failed write is logged; the in-memory
// switch still happens.
func (r *Resolver) Promote(address string) {
	canonical, ok := r.match(address)
	if !ok {
		r.logger.Debug("ignoring promote of unknown address", zap.String("address", address))
		return
	}

	r.mu.Lock()
	if r.active == canonical {
		r.mu.Unlock()
		return
	}
	prev := r.active
	r.active = canonical
	r.mu.Unlock()

	r.logger.Info("switched active backend", zap.String("from", prev), zap.String("to", canonical))
	r.persist(canonical)
}

// AlternateOf returns the other address of the pair. Unknown input maps to
// the primary.
func (r *Resolver) AlternateOf(address string) string {
	canonical, ok := r.match(address)
	if !ok {
		return r.primary
	}
	if canonical == r.primary {
		return r.fallback
	}
	return r.primary
}

// Reset makes the primary active again and persists it.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.active = r.primary
	r.mu.Unlock()
	r.persist(r.primary)
}

func (r *Resolver) persist(address string) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveActiveAddress(address); err != nil {
		r.logger.Warn("failed to persist active backend", zap.String("address", address), zap.Error(err))
	}
}

func (r *Resolver) match(address string) (string, bool) {
	key := normalize(address)
	if key == "" {
		return "", false
	}
	switch key {
	case normalize(r.primary):
		return r.primary, true
	case normalize(r.fallback):
		return r.fallback, true
	default:
		return "", false
	}
}

func normalize(address string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(address)), "/")
}
