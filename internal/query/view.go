package query

import (
	"context"
	"net/url"
	"sync"
)

// View is what one screen displays. Every Load supersedes the previous one;
// a load that settles after a newer Load was issued is discarded, so results
// are applied in request order rather than arrival order.
type View[T any] struct {
	cache *Cache[T]

	mu      sync.Mutex
	seq     uint64
	key     Key
	result  Result[T]
	changed chan struct{}
}

// NewView binds a view to cache.
func NewView[T any](cache *Cache[T]) *View[T] {
	return &View[T]{cache: cache, changed: make(chan struct{})}
}

// Load makes params the current key and returns what can be shown right away.
func (v *View[T]) Load(ctx context.Context, params url.Values, load Loader[T]) Result[T] {
	key := v.cache.Key(ctx, params)

	v.mu.Lock()
	v.seq++
	seq := v.seq
	v.key = key
	v.mu.Unlock()

	res, settled := v.cache.FetchKey(ctx, key, load)

	v.mu.Lock()
	if v.seq == seq {
		v.applyLocked(res)
	}
	current := v.result
	v.mu.Unlock()

	if settled != nil {
		go v.await(seq, settled)
	}
	return current
}

// Current returns the displayed result.
func (v *View[T]) Current() Result[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result
}

// Key returns the key of the latest Load.
func (v *View[T]) Key() Key {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.key
}

// Wait blocks until the current key settles or ctx ends and returns whatever
// is displayed at that point.
func (v *View[T]) Wait(ctx context.Context) Result[T] {
	for {
		v.mu.Lock()
		res := v.result
		changed := v.changed
		v.mu.Unlock()
		if !res.Loading() {
			return res
		}
		select {
		case <-ctx.Done():
			return res
		case <-changed:
		}
	}
}

func (v *View[T]) await(seq uint64, settled <-chan Result[T]) {
	res, ok := <-settled
	if !ok {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seq != seq {
		v.cache.client.observe(v.cache.resource, OutcomeStaleDiscarded)
		return
	}
	v.applyLocked(res)
}

func (v *View[T]) applyLocked(res Result[T]) {
	if res.Loading() && !res.HasData && v.result.HasData {
		res.Data = v.result.Data
		res.HasData = true
		res.Stale = true
	}
	v.result = res
	close(v.changed)
	v.changed = make(chan struct{})
}
