package generic

import "sync"

// Pool is a typed sync.Pool. Values handed back through Put pass through
// reset first, so Get never returns stale contents.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T) T
}

// NewPool builds a pool from a constructor and an optional reset.
func NewPool[T any](generate func() T, reset func(T) T) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() any { return generate() }
	return p
}

// NewSlicePool hands out empty slices with room for capacity elements.
func NewSlicePool[T any](capacity int) *Pool[[]T] {
	return NewPool(
		func() []T { return make([]T, 0, capacity) },
		func(s []T) []T { return s[:0] },
	)
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		value = p.reset(value)
	}
	p.pool.Put(value)
}
