// Package providers holds the registries the permission engine relies on:
// actions that can be granted and conditions that can gate a permission.
package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/asakaida/kanmon/internal/services/hooks"
)

var (
	// ErrDuplicateKey is returned when registering a key twice
	ErrDuplicateKey = errors.New("duplicated item key")
	// ErrProviderFrozen is returned when registering into a frozen provider
	ErrProviderFrozen = errors.New("cannot register new items to a frozen provider")
	// ErrNotFound is returned when an item does not exist
	ErrNotFound = errors.New("item not found")
)

// RegisterContext is passed to the willRegister and didRegister hooks.
// willRegister handlers may replace Value before it is stored.
type RegisterContext[T any] struct {
	Key   string
	Value T
}

// Provider is a key/value registry with registration hooks
type Provider[T any] struct {
	mu     sync.RWMutex
	items  map[string]T
	frozen bool

	willRegister *hooks.Series[*RegisterContext[T]]
	didRegister  *hooks.Series[*RegisterContext[T]]
}

// NewProvider creates an empty provider
func NewProvider[T any]() *Provider[T] {
	return &Provider[T]{
		items:        make(map[string]T),
		willRegister: hooks.NewSeries[*RegisterContext[T]](),
		didRegister:  hooks.NewSeries[*RegisterContext[T]](),
	}
}

// OnWillRegister adds a handler run before an item is stored
func (p *Provider[T]) OnWillRegister(handler hooks.SeriesHandler[*RegisterContext[T]]) {
	p.willRegister.Register(handler)
}

// OnDidRegister adds a handler run after an item is stored
func (p *Provider[T]) OnDidRegister(handler hooks.SeriesHandler[*RegisterContext[T]]) {
	p.didRegister.Register(handler)
}

// Register stores value under key
func (p *Provider[T]) Register(ctx context.Context, key string, value T) error {
	if p.IsFrozen() {
		return fmt.Errorf("register %q: %w", key, ErrProviderFrozen)
	}
	if p.Has(key) {
		return fmt.Errorf("register %q: %w", key, ErrDuplicateKey)
	}

	rc := &RegisterContext[T]{Key: key, Value: value}
	if err := p.willRegister.Call(ctx, rc); err != nil {
		return fmt.Errorf("register %q: %w", key, err)
	}

	p.mu.Lock()
	if _, exists := p.items[key]; exists {
		p.mu.Unlock()
		return fmt.Errorf("register %q: %w", key, ErrDuplicateKey)
	}
	p.items[key] = rc.Value
	p.mu.Unlock()

	if err := p.didRegister.Call(ctx, rc); err != nil {
		return fmt.Errorf("register %q: %w", key, err)
	}
	return nil
}

// Get returns the item stored under key
func (p *Provider[T]) Get(key string) (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.items[key]
	return v, ok
}

// Has reports whether key is registered
func (p *Provider[T]) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Delete removes key
func (p *Provider[T]) Delete(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen {
		return fmt.Errorf("delete %q: %w", key, ErrProviderFrozen)
	}
	if _, ok := p.items[key]; !ok {
		return fmt.Errorf("delete %q: %w", key, ErrNotFound)
	}
	delete(p.items, key)
	return nil
}

// Keys returns the registered keys, sorted
func (p *Provider[T]) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.items))
	for k := range p.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the registered items, sorted by key
func (p *Provider[T]) Values() []T {
	keys := p.Keys()
	p.mu.RLock()
	defer p.mu.RUnlock()
	values := make([]T, 0, len(keys))
	for _, k := range keys {
		if v, ok := p.items[k]; ok {
			values = append(values, v)
		}
	}
	return values
}

// Size returns the number of items
func (p *Provider[T]) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// Freeze rejects every later registration
func (p *Provider[T]) Freeze() {
	p.mu.Lock()
	p.frozen = true
	p.mu.Unlock()
}

// IsFrozen reports whether the provider is frozen
func (p *Provider[T]) IsFrozen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frozen
}
