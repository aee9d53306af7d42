package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store is a second cache layer shared between console processes.
type Store interface {
	Version(ctx context.Context, resource string) (int64, error)
	Get(ctx context.Context, key Key, version int64) ([]byte, bool, error)
	Set(ctx context.Context, key Key, version int64, raw []byte) error
	Bump(ctx context.Context, resource string) (int64, error)
}

// Notifier is implemented by stores that broadcast version bumps.
type Notifier interface {
	ListenForInvalidation(ctx context.Context, fn func(resource string)) error
}

const (
	storePrefix   = "atelier:query"
	bumpChannel   = "atelier:query:bump"
	payloadFields = 3
)

// RedisStore keeps payloads in Redis under per-resource version counters.
// Bumping a version orphans every payload of that resource and notifies the
// other processes on a pub/sub channel.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	instance string
}

// NewRedisStore builds a store whose payloads expire after ttl.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, instance: uuid.NewString()}
}

// Version returns the current version of resource, initialising it when missing.
func (s *RedisStore) Version(ctx context.Context, resource string) (int64, error) {
	if s == nil || s.client == nil {
		return 0, nil
	}
	key := versionKey(resource)
	ver, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX keeps a concurrent Bump from being overwritten.
		if err := s.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return s.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := s.client.Set(ctx, key, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// Get loads the payload of key at version.
func (s *RedisStore) Get(ctx context.Context, key Key, version int64) ([]byte, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, nil
	}
	raw, err := s.client.Get(ctx, dataKey(key, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Set stores the payload of key at version.
func (s *RedisStore) Set(ctx context.Context, key Key, version int64, raw []byte) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Set(ctx, dataKey(key, version), raw, s.ttl).Err()
}

// Bump increments the version of resource and announces it.
func (s *RedisStore) Bump(ctx context.Context, resource string) (int64, error) {
	if s == nil || s.client == nil {
		return 0, nil
	}
	ver, err := s.client.Incr(ctx, versionKey(resource)).Result()
	if err != nil {
		return 0, err
	}
	payload := strings.Join([]string{s.instance, resource, strconv.FormatInt(ver, 10)}, "|")
	if err := s.client.Publish(ctx, bumpChannel, payload).Err(); err != nil {
		return ver, err
	}
	return ver, nil
}

// ListenForInvalidation calls fn for every bump made by another process.
// Subscription happens before returning; delivery runs until ctx ends.
func (s *RedisStore) ListenForInvalidation(ctx context.Context, fn func(resource string)) error {
	if s == nil || s.client == nil || fn == nil {
		return nil
	}
	pubsub := s.client.Subscribe(ctx, bumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("query: subscribe %s: %w", bumpChannel, err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				parts := strings.SplitN(msg.Payload, "|", payloadFields)
				if len(parts) != payloadFields || parts[0] == s.instance || parts[1] == "" {
					continue
				}
				fn(parts[1])
			}
		}
	}()
	return nil
}

func versionKey(resource string) string {
	return storePrefix + ":version:" + resource
}

func dataKey(key Key, version int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", storePrefix, key.Resource, key.Hash(), version)
}
