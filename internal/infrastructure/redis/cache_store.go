package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketdata-service/internal/application"

	"github.com/redis/go-redis/v9"
)

const scanPageSize = 100

// envelope is the stored shape. expires_at duplicates the native Redis TTL
// so expiry holds even when the server has not evicted the key yet.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt int64           `json:"expires_at"`
}

// Store is the Redis-backed cache. Now is overridable for expiry tests and
// defaults to time.Now.
type Store struct {
	Client *redis.Client
	Now    func() time.Time
}

var _ application.CacheStore = (*Store)(nil)

func New(client *redis.Client) *Store { return &Store{Client: client} }

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) Get(ctx context.Context, key string) (application.CacheEntry, bool, error) {
	raw, err := s.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return application.CacheEntry{}, false, nil
	}
	if err != nil {
		return application.CacheEntry{}, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	entry, ok := s.decode(raw)
	if !ok {
		return application.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

func (s *Store) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache set %s: marshal: %w", key, err)
	}
	env := envelope{Data: data, ExpiresAt: s.now().Add(ttl).Unix()}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("cache set %s: marshal envelope: %w", key, err)
	}
	if err := s.Client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (s *Store) GetWithPrefix(ctx context.Context, prefix string) ([]application.PrefixEntry, error) {
	keys, err := s.scanKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]application.PrefixEntry, 0, len(keys))
	for _, key := range keys {
		raw, err := s.Client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cache prefix read %s: %w", key, err)
		}
		entry, ok := s.decode(raw)
		if !ok {
			continue
		}
		out = append(out, application.PrefixEntry{Key: key, Data: entry.Data, TTL: entry.TTL})
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context, prefix string) (int, error) {
	keys, err := s.scanKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, key := range keys {
		n, err := s.Client.Del(ctx, key).Result()
		if err != nil {
			return cleared, fmt.Errorf("cache clear %s: %w", key, err)
		}
		cleared += int(n)
	}
	return cleared, nil
}

// decode unmarshals an envelope and applies the defensive expiry check;
// expired or corrupt entries read as absent.
func (s *Store) decode(raw []byte) (application.CacheEntry, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return application.CacheEntry{}, false
	}
	remaining := env.ExpiresAt - s.now().Unix()
	if remaining <= 0 {
		return application.CacheEntry{}, false
	}
	return application.CacheEntry{Data: env.Data, TTL: time.Duration(remaining) * time.Second}, true
}

func (s *Store) scanKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.Client.Scan(ctx, 0, prefix+"*", scanPageSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("cache scan %s*: %w", prefix, err)
	}
	return keys, nil
}
