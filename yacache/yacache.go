// Package yacache provides a small key-value cache abstraction with two
// back-ends: an in-memory map guarded by a RWMutex and a Redis wrapper. Both
// expose the same API so callers such as the rate limiter can switch
// implementations without changing their logic.
//
// # Generic design
//
// [Cache] is parameterised by the container type (*redis.Client or
// MemoryContainer) so that [Cache.Raw] returns the concrete driver value
// without type assertions.
//
// # Error handling
//
// All methods return yaerrors.Error. A missing key is reported with
// http.StatusNotFound wrapping [ErrKeyNotFound].
//
// # Quick start (in-memory)
//
//	memory := yacache.NewCache(yacache.NewMemoryContainer())
//	_ = memory.Set(ctx, "rate-limit-42-messages", "1,1726860000", time.Minute)
//	value, _ := memory.Get(ctx, "rate-limit-42-messages")
//
// # Quick start (Redis)
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	cache := yacache.NewCache(client)
//	acquired, _ := cache.SetNX(ctx, "lock", "token", time.Second)
package yacache

import (
	"context"
	"time"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/redis/go-redis/v9"
)

// Cache is a string key-value cache with TTL support.
// A zero ttl means "store indefinitely".
type Cache[T Container] interface {
	// Raw exposes the concrete client for operations outside this API.
	Raw() T

	// Set stores key → value with ttl.
	//
	// Example:
	//
	//	_ = c.Set(ctx, "access-token", "abc123", 10*time.Minute)
	Set(ctx context.Context, key string, value string, ttl time.Duration) yaerrors.Error

	// SetNX stores key → value only if key is absent and reports whether it did.
	//
	// Example:
	//
	//	acquired, _ := c.SetNX(ctx, "lock:42", token, time.Second)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, yaerrors.Error)

	// Get returns the value stored under key or a 404 error wrapping ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, yaerrors.Error)

	// GetDel atomically reads and deletes key.
	GetDel(ctx context.Context, key string) (string, yaerrors.Error)

	// Exists returns how many of keys are present.
	Exists(ctx context.Context, keys ...string) (int64, yaerrors.Error)

	// Del removes keys. Deleting a missing key is not an error.
	Del(ctx context.Context, keys ...string) yaerrors.Error

	// Expire updates the ttl of an existing key and reports whether the key existed.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, yaerrors.Error)

	// Ping verifies that the backend is reachable.
	Ping(ctx context.Context) yaerrors.Error

	// Close releases resources.
	Close() yaerrors.Error
}

// Container is the type set of back-end clients the cache can wrap.
type Container interface {
	*redis.Client | MemoryContainer
}

// NewCache picks the implementation matching the container type.
//
// Example:
//
//	memory := yacache.NewCache(yacache.NewMemoryContainer())
//	redis := yacache.NewCache(redisClient)
func NewCache[T Container](container T) Cache[T] {
	switch value := any(container).(type) {
	case *redis.Client:
		cache, _ := any(NewRedis(value)).(Cache[T])

		return cache
	case MemoryContainer:
		cache, _ := any(NewMemory(value, time.Minute)).(Cache[T])

		return cache
	default:
		cache, _ := any(NewMemory(NewMemoryContainer(), time.Minute)).(Cache[T])

		return cache
	}
}
