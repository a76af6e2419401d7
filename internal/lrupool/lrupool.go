// Package lrupool is the bounded LRU pool of open archive readers
// (component B): insertion above the bound evicts and closes the
// least-recently-used entry first. Grounded on the desktop client's
// cache.TileCache eviction shape, but backed by the real
// github.com/hashicorp/golang-lru/v2 implementation instead of the
// teacher's hand-rolled bubble-sort eviction.
package lrupool

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Reader is anything the pool manages; it must be closeable so eviction can
// release the underlying file descriptor.
type Reader interface {
	Close() error
}

// Pool is a size-bounded, path-keyed cache of open readers. Access is
// serialized by a mutex: holding a reader across a suspension point is safe
// because the underlying archive only does positional I/O once acquired.
type Pool[R Reader] struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, R]
	opener func(path string) (R, error)
}

// New creates a pool bounded at size, using opener to materialize a reader
// the first time a path is acquired.
func New[R Reader](size int, opener func(path string) (R, error)) (*Pool[R], error) {
	if size <= 0 {
		size = 1
	}
	p := &Pool[R]{opener: opener}
	cache, err := lru.NewWithEvict[string, R](size, func(_ string, value R) {
		value.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("lrupool: %w", err)
	}
	p.cache = cache
	return p, nil
}

// Acquire promotes path to most-recently-used and returns its reader,
// opening it if this is the first acquisition. If opening the underlying
// file fails, the pool is left unchanged.
func (p *Pool[R]) Acquire(path string) (R, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.cache.Get(path); ok {
		return r, nil
	}

	r, err := p.opener(path)
	if err != nil {
		var zero R
		return zero, fmt.Errorf("lrupool: opening %s: %w", path, err)
	}
	p.cache.Add(path, r)
	return r, nil
}

// CloseAll drains the pool on shutdown, closing every open reader.
func (p *Pool[R]) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Purge()
}

// Len reports the number of currently open readers.
func (p *Pool[R]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.Len()
}
