package yaratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/YaCodeDev/GoYaBotKit/yacache"
	"github.com/YaCodeDev/GoYaBotKit/yaratelimit"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementWorkflow_Works(t *testing.T) {
	ctx := context.Background()

	cache := yacache.NewCache(yacache.NewMemoryContainer())
	t.Cleanup(func() { _ = cache.Close() })

	t.Run("First hit opens a window", func(t *testing.T) {
		rate := yaratelimit.NewRateLimit(cache, 5, time.Minute)

		banned, err := rate.Increment(ctx, 100, "open")
		require.Nil(t, err)
		assert.False(t, banned)

		window, err := rate.Get(ctx, 100, "open")
		require.Nil(t, err)
		assert.Equal(t, uint32(1), window.Count)
	})

	t.Run("Hits over the limit are banned", func(t *testing.T) {
		rate := yaratelimit.NewRateLimit(cache, 3, time.Minute)

		for range 3 {
			banned, err := rate.Increment(ctx, 100, "overflow")
			require.Nil(t, err)
			assert.False(t, banned)
		}

		banned, err := rate.Check(ctx, 100, "overflow")
		require.Nil(t, err)
		assert.True(t, banned)

		banned, err = rate.Increment(ctx, 100, "overflow")
		require.Nil(t, err)
		assert.True(t, banned)

		window, _ := rate.Get(ctx, 100, "overflow")
		assert.Equal(t, uint32(3), window.Count)
	})

	t.Run("Expired window starts over", func(t *testing.T) {
		rate := yaratelimit.NewRateLimit(cache, 1, 20*time.Millisecond)

		banned, _ := rate.Increment(ctx, 100, "refresh")
		assert.False(t, banned)

		banned, _ = rate.Increment(ctx, 100, "refresh")
		assert.True(t, banned)

		time.Sleep(30 * time.Millisecond)

		banned, _ = rate.Increment(ctx, 100, "refresh")
		assert.False(t, banned)
	})

	t.Run("Subjects are independent", func(t *testing.T) {
		rate := yaratelimit.NewRateLimit(cache, 1, time.Minute)

		banned, _ := rate.Increment(ctx, 1, "independent")
		assert.False(t, banned)

		banned, _ = rate.Increment(ctx, 2, "independent")
		assert.False(t, banned)
	})
}

func TestRateLimit_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	rate := yaratelimit.NewRateLimit(yacache.NewCache(client), 2, time.Minute)

	_, _ = rate.Increment(ctx, 7, "message")
	_, _ = rate.Increment(ctx, 7, "message")

	banned, err := rate.Increment(ctx, 7, "message")
	require.Nil(t, err)
	assert.True(t, banned)

	assert.True(t, mr.Exists(yaratelimit.FormatKey(7, "message")))
	assert.Greater(t, mr.TTL(yaratelimit.FormatKey(7, "message")), time.Duration(0))
}

func TestParseValue(t *testing.T) {
	window, err := yaratelimit.ParseValue(yaratelimit.FormatValue(4, 1726860000000))
	require.Nil(t, err)
	assert.Equal(t, &yaratelimit.Window{Count: 4, Start: 1726860000000}, window)

	_, err = yaratelimit.ParseValue("garbage")
	assert.NotNil(t, err)
}
