package tokenstore

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	go_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*CacheStore)(nil)

// keyPrefix namespaces the token in shared key/value stores.
const keyPrefix = "parley-"

// CacheStore keeps the token in a gocache backed key/value store.
type CacheStore struct {
	cache  *cache.Cache[string]
	key    string
	closer func() error
}

// NewMemoryStore creates a store that only lives as long as the process.
func NewMemoryStore(key string) *CacheStore {
	// tokens never expire on their own, only logout or a failed validation removes them
	gocacheClient := gocache.New(gocache.NoExpiration, gocache.NoExpiration)
	gocacheStore := go_store.NewGoCache(gocacheClient)
	return &CacheStore{
		cache: cache.New[string](gocacheStore),
		key:   keyPrefix + key,
	}
}

// NewRedisStore creates a store backed by the redis server at addr.
func NewRedisStore(addr, key string) *CacheStore {
	redisClient := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	redisStore := redis_store.NewRedis(redisClient)
	return &CacheStore{
		cache:  cache.New[string](redisStore),
		key:    keyPrefix + key,
		closer: redisClient.Close,
	}
}

func (s *CacheStore) Load(ctx context.Context) (string, error) {
	token, err := s.cache.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, store.NotFound{}) {
			return "", nil
		}
		log.Error("failed to load token", "store", s.cache.GetType(), "error", err)
		return "", err
	}
	return token, nil
}

func (s *CacheStore) Save(ctx context.Context, token string) error {
	if err := s.cache.Set(ctx, s.key, token); err != nil {
		log.Error("failed to save token", "store", s.cache.GetType(), "error", err)
		return err
	}
	return nil
}

func (s *CacheStore) Remove(ctx context.Context) error {
	if err := s.cache.Delete(ctx, s.key); err != nil {
		if errors.Is(err, store.NotFound{}) {
			return nil
		}
		log.Error("failed to remove token", "store", s.cache.GetType(), "error", err)
		return err
	}
	return nil
}

func (s *CacheStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
