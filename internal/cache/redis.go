package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis, for deployments where several
// fetcher processes should share one cache. Document bodies live in
// TTL'd string keys; a per-session sorted set scored by insertion time
// keeps FIFO order for eviction.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	capacity int

	// OnRemove mirrors MemoryStore.OnRemove for evictions this process
	// performs. Entries Redis expires on its own are not observed.
	OnRemove func(sessionID, url string)
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration, capacity int) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl, capacity: capacity}, nil
}

func docKey(sessionID, key string) string { return "docfetch:doc:" + sessionID + ":" + key }
func orderKey(sessionID string) string    { return "docfetch:order:" + sessionID }

func (s *RedisStore) Get(ctx context.Context, sessionID, url string) (CachedDocument, bool, error) {
	key := urlKey(url)
	raw, err := s.client.Get(ctx, docKey(sessionID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Document key expired (or never existed); drop the stale order
		// entry so it cannot pin the session at capacity.
		_ = s.client.ZRem(ctx, orderKey(sessionID), key).Err()
		return CachedDocument{}, false, nil
	}
	if err != nil {
		return CachedDocument{}, false, fmt.Errorf("redis get: %w", err)
	}

	var doc CachedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return CachedDocument{}, false, fmt.Errorf("redis entry decode: %w", err)
	}
	if doc.Expired(s.ttl, time.Now()) {
		_, _ = s.client.Del(ctx, docKey(sessionID, key)).Result()
		_ = s.client.ZRem(ctx, orderKey(sessionID), key).Err()
		return CachedDocument{}, false, nil
	}
	return doc, true, nil
}

func (s *RedisStore) Put(ctx context.Context, doc CachedDocument) error {
	key := urlKey(doc.URL)
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redis entry encode: %w", err)
	}

	if err := s.evict(ctx, doc.SessionID, key); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, docKey(doc.SessionID, key), raw, s.ttl)
	pipe.ZAdd(ctx, orderKey(doc.SessionID), redis.Z{
		Score:  float64(doc.CreatedAt.UnixNano()),
		Member: key,
	})
	pipe.Expire(ctx, orderKey(doc.SessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// evict removes oldest entries until the session has room for one more.
// Inserting an already-present key is a replacement and never evicts.
func (s *RedisStore) evict(ctx context.Context, sessionID, incomingKey string) error {
	_, err := s.client.ZScore(ctx, orderKey(sessionID), incomingKey).Result()
	if err == nil {
		return nil
	}
	if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis zscore: %w", err)
	}

	for {
		n, err := s.client.ZCard(ctx, orderKey(sessionID)).Result()
		if err != nil {
			return fmt.Errorf("redis zcard: %w", err)
		}
		if int(n) < s.capacity {
			return nil
		}
		oldest, err := s.client.ZRange(ctx, orderKey(sessionID), 0, 0).Result()
		if err != nil {
			return fmt.Errorf("redis zrange: %w", err)
		}
		if len(oldest) == 0 {
			return nil
		}
		key := oldest[0]

		var url string
		if raw, err := s.client.Get(ctx, docKey(sessionID, key)).Bytes(); err == nil {
			var doc CachedDocument
			if json.Unmarshal(raw, &doc) == nil {
				url = doc.URL
			}
		}
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, docKey(sessionID, key))
		pipe.ZRem(ctx, orderKey(sessionID), key)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis evict: %w", err)
		}
		if s.OnRemove != nil && url != "" {
			s.OnRemove(sessionID, url)
		}
	}
}

func (s *RedisStore) DestroySession(ctx context.Context, sessionID string) error {
	keys, err := s.client.ZRange(ctx, orderKey(sessionID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis zrange: %w", err)
	}
	pipe := s.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, docKey(sessionID, key))
	}
	pipe.Del(ctx, orderKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis destroy session: %w", err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context, sessionID string) (int, error) {
	n, err := s.client.ZCard(ctx, orderKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard: %w", err)
	}
	return int(n), nil
}

// Sweep is a no-op for Redis: document keys carry their own TTL and
// stale order members are pruned on access.
func (s *RedisStore) Sweep(context.Context) (int, error) { return 0, nil }

// Close releases the underlying client.
func (s *RedisStore) Close() error { return s.client.Close() }

var _ Store = (*RedisStore)(nil)
