// Package query caches backend reads by (resource, parameters), coalesces
// identical in-flight loads, and applies results to screens in commit order.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Outcome labels a cache observation for metrics.
type Outcome string

const (
	OutcomeHit            Outcome = "hit"
	OutcomeMiss           Outcome = "miss"
	OutcomeCoalesced      Outcome = "coalesced"
	OutcomeStoreHit       Outcome = "store_hit"
	OutcomeStaleDiscarded Outcome = "stale_discarded"
	OutcomeError          Outcome = "error"
)

// Recorder receives cache observations.
type Recorder interface {
	Observe(resource string, outcome Outcome)
}

// Options configures a Client.
type Options struct {
	Store        Store
	Bus          *Bus
	Recorder     Recorder
	Logger       *slog.Logger
	FetchTimeout time.Duration
	// TTL marks in-memory successes stale after this long; zero keeps them
	// fresh until invalidated.
	TTL time.Duration
}

// ErrUnknownResource is returned when invalidating a resource nobody registered.
var ErrUnknownResource = errors.New("query: unknown resource")

type invalidator interface {
	invalidateLocal()
}

// Client is the process-wide bridge between screens and resource services.
type Client struct {
	mu     sync.RWMutex
	caches map[string]invalidator

	store        Store
	bus          *Bus
	recorder     Recorder
	logger       *slog.Logger
	fetchTimeout time.Duration
	ttl          time.Duration
}

// NewClient builds a Client.
func NewClient(opts Options) *Client {
	bus := opts.Bus
	if bus == nil {
		bus = NewBus()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		caches:       make(map[string]invalidator),
		store:        opts.Store,
		bus:          bus,
		recorder:     opts.Recorder,
		logger:       logger,
		fetchTimeout: opts.FetchTimeout,
		ttl:          opts.TTL,
	}
}

// Register returns the typed cache of resource, creating it on first use.
// Registering one resource with two different types panics.
func Register[T any](c *Client, resource string) *Cache[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.caches[resource]; ok {
		typed, ok := existing.(*Cache[T])
		if !ok {
			panic(fmt.Sprintf("query: resource %q registered with another type", resource))
		}
		return typed
	}
	cache := newCache[T](c, resource)
	c.caches[resource] = cache
	return cache
}

// Bus exposes the event bus.
func (c *Client) Bus() *Bus { return c.bus }

// Invalidate marks every entry of resource stale here and in the shared store.
// Resources registered as "resource/<sub>" are invalidated along with it.
func (c *Client) Invalidate(ctx context.Context, resource string) error {
	names := c.matching(resource)
	if len(names) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	var errs []error
	for _, name := range names {
		c.invalidateOne(name)
		if c.store == nil {
			continue
		}
		if _, err := c.store.Bump(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("query: bump %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// InvalidateLocal marks entries stale in this process only. It reports whether
// any registered resource matched.
func (c *Client) InvalidateLocal(resource string) bool {
	names := c.matching(resource)
	for _, name := range names {
		c.invalidateOne(name)
	}
	return len(names) > 0
}

// Resources lists the registered resource names in order.
func (c *Client) Resources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.caches))
	for name := range c.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Client) matching(resource string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var names []string
	for name := range c.caches {
		if name == resource || strings.HasPrefix(name, resource+"/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (c *Client) invalidateOne(name string) {
	c.mu.RLock()
	cache, ok := c.caches[name]
	c.mu.RUnlock()
	if !ok {
		return
	}
	cache.invalidateLocal()
	c.bus.Publish(Event{Kind: EventInvalidated, Resource: name})
}

// Mutate runs a write. On success the resource is invalidated and
// EventMutationSucceeded is published; the error of fn is returned untouched.
func (c *Client) Mutate(ctx context.Context, m Mutation, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, m.Resource); err != nil {
		c.logger.Warn("invalidate after mutation", slog.String("resource", m.Resource), slog.Any("error", err))
	}
	mutation := m
	c.bus.Publish(Event{Kind: EventMutationSucceeded, Resource: m.Resource, Mutation: &mutation})
	return nil
}

// Listen follows invalidations published by other processes until ctx ends.
func (c *Client) Listen(ctx context.Context) error {
	notifier, ok := c.store.(Notifier)
	if !ok || notifier == nil {
		return nil
	}
	return notifier.ListenForInvalidation(ctx, func(resource string) {
		c.InvalidateLocal(resource)
	})
}

func (c *Client) observe(resource string, outcome Outcome) {
	if c.recorder != nil {
		c.recorder.Observe(resource, outcome)
	}
}
