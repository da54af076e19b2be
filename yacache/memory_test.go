package yacache_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/YaCodeDev/GoYaBotKit/yacache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	cache := yacache.NewCache(yacache.NewMemoryContainer())
	ctx := context.Background()

	t.Cleanup(func() { _ = cache.Close() })

	require.Nil(t, cache.Set(ctx, "key", "value", 0))

	value, err := cache.Get(ctx, "key")
	require.Nil(t, err)
	assert.Equal(t, "value", value)

	_, err = cache.Get(ctx, "missing")
	require.NotNil(t, err)
	assert.Equal(t, http.StatusNotFound, err.Code())
	assert.ErrorIs(t, err, yacache.ErrKeyNotFound)
}

func TestMemoryCache_ExpiredKeysAreInvisible(t *testing.T) {
	cache := yacache.NewMemory(yacache.NewMemoryContainer(), time.Hour)
	ctx := context.Background()

	t.Cleanup(func() { _ = cache.Close() })

	require.Nil(t, cache.Set(ctx, "short", "value", 10*time.Millisecond))

	time.Sleep(20 * time.Millisecond)

	_, err := cache.Get(ctx, "short")
	assert.NotNil(t, err)

	count, _ := cache.Exists(ctx, "short")
	assert.Zero(t, count)

	acquired, _ := cache.SetNX(ctx, "short", "again", 0)
	assert.True(t, acquired)
}

func TestMemoryCache_SweeperPurgesExpiredKeys(t *testing.T) {
	cache := yacache.NewMemory(yacache.NewMemoryContainer(), 5*time.Millisecond)
	ctx := context.Background()

	t.Cleanup(func() { _ = cache.Close() })

	require.Nil(t, cache.Set(ctx, "short", "value", time.Millisecond))
	require.Nil(t, cache.Set(ctx, "endless", "value", 0))

	assert.Eventually(t, func() bool {
		count, _ := cache.Exists(ctx, "short", "endless")

		return count == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryCache_SetNXIsExclusive(t *testing.T) {
	cache := yacache.NewMemory(yacache.NewMemoryContainer(), time.Minute)
	ctx := context.Background()

	t.Cleanup(func() { _ = cache.Close() })

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)

	for range 32 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if ok, _ := cache.SetNX(ctx, "lock", "token", time.Minute); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestMemoryCache_GetDelAndExpire(t *testing.T) {
	cache := yacache.NewMemory(yacache.NewMemoryContainer(), time.Minute)
	ctx := context.Background()

	t.Cleanup(func() { _ = cache.Close() })

	require.Nil(t, cache.Set(ctx, "key", "value", 0))

	ok, _ := cache.Expire(ctx, "key", 10*time.Millisecond)
	assert.True(t, ok)

	value, err := cache.GetDel(ctx, "key")
	require.Nil(t, err)
	assert.Equal(t, "value", value)

	ok, _ = cache.Expire(ctx, "key", time.Second)
	assert.False(t, ok)

	require.Nil(t, cache.Close())
	require.Nil(t, cache.Close())
}
