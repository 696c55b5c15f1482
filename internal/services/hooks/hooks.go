// Package hooks provides the extension points used by the permission engine and
// the providers. Each kind composes its handlers with a fixed strategy.
package hooks

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Kind identifies the composition strategy of a hook
type Kind string

const (
	KindBail      Kind = "bail"
	KindWaterfall Kind = "waterfall"
	KindSeries    Kind = "series"
	KindParallel  Kind = "parallel"
)

// Hook is the part of a hook that does not depend on its handler signature
type Hook interface {
	Kind() Kind
	Len() int
}

// handlers is the shared handler list; registration is safe for concurrent use
type handlers[H any] struct {
	mu   sync.RWMutex
	list []H
}

func (h *handlers[H]) add(handler H) {
	h.mu.Lock()
	h.list = append(h.list, handler)
	h.mu.Unlock()
}

func (h *handlers[H]) snapshot() []H {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]H(nil), h.list...)
}

func (h *handlers[H]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.list)
}

// BailHandler returns the zero value of R to let the next handler decide
type BailHandler[C any, R comparable] func(ctx context.Context, c C) (R, error)

// Bail runs handlers in order and returns the first non-zero result.
type Bail[C any, R comparable] struct {
	handlers[BailHandler[C, R]]
}

// NewBail creates a bail hook
func NewBail[C any, R comparable]() *Bail[C, R] {
	return &Bail[C, R]{}
}

// Kind implements Hook
func (h *Bail[C, R]) Kind() Kind { return KindBail }

// Register appends a handler
func (h *Bail[C, R]) Register(handler BailHandler[C, R]) {
	h.add(handler)
}

// Call returns the first non-zero result, or the zero value when every handler passes
func (h *Bail[C, R]) Call(ctx context.Context, c C) (R, error) {
	var zero R
	for _, handler := range h.snapshot() {
		result, err := handler(ctx, c)
		if err != nil {
			return zero, err
		}
		if result != zero {
			return result, nil
		}
	}
	return zero, nil
}

// WaterfallHandler receives the previous handler's output and returns a new value
type WaterfallHandler[T any] func(ctx context.Context, value T) (T, error)

// Waterfall threads a value through every handler.
type Waterfall[T any] struct {
	handlers[WaterfallHandler[T]]
}

// NewWaterfall creates a waterfall hook
func NewWaterfall[T any]() *Waterfall[T] {
	return &Waterfall[T]{}
}

// Kind implements Hook
func (h *Waterfall[T]) Kind() Kind { return KindWaterfall }

// Register appends a handler
func (h *Waterfall[T]) Register(handler WaterfallHandler[T]) {
	h.add(handler)
}

// Call returns the value produced by the last handler (the input when there are none)
func (h *Waterfall[T]) Call(ctx context.Context, value T) (T, error) {
	for _, handler := range h.snapshot() {
		next, err := handler(ctx, value)
		if err != nil {
			return value, err
		}
		value = next
	}
	return value, nil
}

// SeriesHandler is run for its side effects
type SeriesHandler[C any] func(ctx context.Context, c C) error

// Series runs every handler in order, ignoring results.
type Series[C any] struct {
	handlers[SeriesHandler[C]]
}

// NewSeries creates a series hook
func NewSeries[C any]() *Series[C] {
	return &Series[C]{}
}

// Kind implements Hook
func (h *Series[C]) Kind() Kind { return KindSeries }

// Register appends a handler
func (h *Series[C]) Register(handler SeriesHandler[C]) {
	h.add(handler)
}

// Call runs the handlers in order and stops at the first error
func (h *Series[C]) Call(ctx context.Context, c C) error {
	for _, handler := range h.snapshot() {
		if err := handler(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// ParallelHandler is run concurrently with the other handlers of the hook
type ParallelHandler[C any, R any] func(ctx context.Context, c C) (R, error)

// Parallel runs every handler concurrently and collects their results.
type Parallel[C any, R any] struct {
	handlers[ParallelHandler[C, R]]
}

// NewParallel creates a parallel hook
func NewParallel[C any, R any]() *Parallel[C, R] {
	return &Parallel[C, R]{}
}

// Kind implements Hook
func (h *Parallel[C, R]) Kind() Kind { return KindParallel }

// Register appends a handler
func (h *Parallel[C, R]) Register(handler ParallelHandler[C, R]) {
	h.add(handler)
}

// Call returns the results in registration order, or the first error
func (h *Parallel[C, R]) Call(ctx context.Context, c C) ([]R, error) {
	list := h.snapshot()
	results := make([]R, len(list))

	g, gctx := errgroup.WithContext(ctx)
	for i, handler := range list {
		g.Go(func() error {
			result, err := handler(gctx, c)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
