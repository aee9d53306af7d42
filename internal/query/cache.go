package query

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader performs the backend read of one key.
type Loader[T any] func(ctx context.Context) (T, error)

type flight struct {
	id  uint64
	gen uint64
}

type entry[T any] struct {
	result  Result[T]
	gen     uint64
	flight  *flight
	settled *flight
}

// Cache holds the results of one resource.
type Cache[T any] struct {
	client   *Client
	resource string

	mu      sync.Mutex
	gen     uint64
	flights uint64
	entries map[Key]*entry[T]
	group   singleflight.Group
	now     func() time.Time
}

func newCache[T any](client *Client, resource string) *Cache[T] {
	return &Cache[T]{
		client:   client,
		resource: resource,
		entries:  make(map[Key]*entry[T]),
		now:      time.Now,
	}
}

// Resource returns the resource name.
func (c *Cache[T]) Resource() string { return c.resource }

// Bus returns the event bus of the owning client.
func (c *Cache[T]) Bus() *Bus { return c.client.bus }

// Key builds the key of params for this resource in the scope of ctx.
func (c *Cache[T]) Key(ctx context.Context, params url.Values) Key {
	return NewKey(c.resource, params).In(ScopeOf(ctx))
}

// Fetch is FetchKey for the key of params in the scope of ctx.
func (c *Cache[T]) Fetch(ctx context.Context, params url.Values, load Loader[T]) (Result[T], <-chan Result[T]) {
	return c.FetchKey(ctx, c.Key(ctx, params), load)
}

// FetchKey returns the current result of key without blocking. A fresh success
// comes back with a nil channel. Otherwise the entry is loading (keeping any
// previous data) and the channel yields the settled result once the single
// in-flight load for this key and generation finishes.
func (c *Cache[T]) FetchKey(ctx context.Context, key Key, load Loader[T]) (Result[T], <-chan Result[T]) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{result: Result[T]{Key: key, Status: StatusLoading}}
		c.entries[key] = e
	}
	if c.freshLocked(e) {
		res := e.result
		c.mu.Unlock()
		c.client.observe(c.resource, OutcomeHit)
		return res, nil
	}
	coalesced := e.flight != nil && e.flight.gen == c.gen
	if !coalesced {
		c.flights++
		e.flight = &flight{id: c.flights, gen: c.gen}
		e.result.Status = StatusLoading
		e.result.Err = nil
		e.result.Stale = e.result.HasData
	}
	fl := e.flight
	res := e.result
	c.mu.Unlock()

	if coalesced {
		c.client.observe(c.resource, OutcomeCoalesced)
	} else {
		c.client.observe(c.resource, OutcomeMiss)
	}

	// The load outlives the request that started it; coalesced callers and
	// views wait on it after that request has returned.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(key, fl), func() (any, error) {
		loadCtx := detached
		if c.client.fetchTimeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(detached, c.client.fetchTimeout)
			defer cancel()
		}
		return c.loadThrough(loadCtx, key, load)
	})
	out := make(chan Result[T], 1)
	go func() {
		r := <-ch
		out <- c.settle(key, fl, r.Val, r.Err)
		close(out)
	}()
	return res, out
}

// Await fetches params and blocks until the load settles or ctx ends, in
// which case the loading result is returned.
func (c *Cache[T]) Await(ctx context.Context, params url.Values, load Loader[T]) Result[T] {
	res, settled := c.Fetch(ctx, params, load)
	if settled == nil {
		return res
	}
	select {
	case r := <-settled:
		return r
	case <-ctx.Done():
		return res
	}
}

// Peek returns the current result of params in the scope of ctx without loading.
func (c *Cache[T]) Peek(ctx context.Context, params url.Values) (Result[T], bool) {
	return c.PeekKey(c.Key(ctx, params))
}

// PeekKey returns the current result of key without loading.
func (c *Cache[T]) PeekKey(key Key) (Result[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Result[T]{Key: key, Status: StatusLoading}, false
	}
	return e.result, true
}

// NeedsLoad reports whether key lacks a usable entry: missing, invalidated or
// expired. Failed and in-flight entries report false; a failure is retried
// only by an explicit fetch.
func (c *Cache[T]) NeedsLoad(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return true
	}
	if e.flight != nil || e.result.Status == StatusError {
		return false
	}
	return !c.freshLocked(e)
}

func (c *Cache[T]) invalidateLocal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for _, e := range c.entries {
		if e.result.HasData {
			e.result.Stale = true
		}
	}
}

func (c *Cache[T]) freshLocked(e *entry[T]) bool {
	if e.result.Status != StatusSuccess || e.gen != c.gen || e.flight != nil {
		return false
	}
	if ttl := c.client.ttl; ttl > 0 && c.now().Sub(e.result.UpdatedAt) > ttl {
		return false
	}
	return true
}

func (c *Cache[T]) settle(key Key, fl *flight, val any, err error) Result[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e != nil && e.flight == nil && e.settled == fl {
		// A peer waiting on the same flight already settled the entry.
		return e.result
	}
	if e == nil || e.flight != fl {
		// A newer flight owns the entry, after an invalidation or a retry;
		// hand the value back to the waiter without touching the entry.
		return c.detachedResult(key, val, err)
	}
	e.flight = nil
	e.settled = fl
	e.gen = fl.gen
	if err != nil {
		e.result.Status = StatusError
		e.result.Err = err
		c.client.observe(c.resource, OutcomeError)
	} else {
		data, _ := val.(T)
		e.result.Status = StatusSuccess
		e.result.Data = data
		e.result.HasData = true
		e.result.Err = nil
		e.result.UpdatedAt = c.now()
	}
	e.result.Stale = fl.gen != c.gen
	return e.result
}

func (c *Cache[T]) detachedResult(key Key, val any, err error) Result[T] {
	res := Result[T]{Key: key, Stale: true, UpdatedAt: c.now()}
	if err != nil {
		res.Status = StatusError
		res.Err = err
		return res
	}
	res.Data, _ = val.(T)
	res.HasData = true
	res.Status = StatusSuccess
	return res
}

func (c *Cache[T]) loadThrough(ctx context.Context, key Key, load Loader[T]) (any, error) {
	store := c.client.store
	var (
		version int64
		useRaw  bool
	)
	if store != nil {
		v, err := store.Version(ctx, c.resource)
		if err != nil {
			c.client.logger.Warn("query store version", slog.String("resource", c.resource), slog.Any("error", err))
		} else {
			version, useRaw = v, true
			raw, found, err := store.Get(ctx, key, version)
			switch {
			case err != nil:
				c.client.logger.Warn("query store get", slog.String("key", key.String()), slog.Any("error", err))
			case found:
				var data T
				if err := json.Unmarshal(raw, &data); err == nil {
					c.client.observe(c.resource, OutcomeStoreHit)
					return data, nil
				}
			}
		}
	}

	data, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if useRaw {
		raw, err := json.Marshal(data)
		if err == nil {
			err = store.Set(ctx, key, version, raw)
		}
		if err != nil {
			c.client.logger.Warn("query store set", slog.String("key", key.String()), slog.Any("error", err))
		}
	}
	return data, nil
}

func flightKey(key Key, fl *flight) string {
	return key.Hash() + "#" + strconv.FormatUint(fl.id, 10)
}
