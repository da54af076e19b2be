package yacache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yalogger"
	"github.com/redis/go-redis/v9"
)

// Redis wraps a *redis.Client and implements the Cache interface.
type Redis struct {
	client *redis.Client
}

// NewRedis turns an already configured client into a Cache.
//
// Example:
//
//	cache := yacache.NewRedis(redis.NewClient(&redis.Options{Addr: addr}))
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// NewRedisClient dials redis and performs an initial PING, terminating the
// process through log.Fatalf when the server is unreachable.
//
// Example:
//
//	client := yacache.NewRedisClient("127.0.0.1:6379", "", 0, log)
func NewRedisClient(addr string, password string, db int, log yalogger.Logger) *redis.Client {
	if log == nil {
		log = yalogger.NewLogger()
	}

	log.Infof("Redis connecting to addr %s", addr)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}

	log.Infof("Redis connected to addr %s", addr)

	return client
}

func (r *Redis) Raw() *redis.Client {
	return r.client
}

func (r *Redis) Set(ctx context.Context, key string, value string, ttl time.Duration) yaerrors.Error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToSet),
			fmt.Sprintf("[REDIS] failed `SET` by `%s`", key),
		)
	}

	return nil
}

func (r *Redis) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, yaerrors.Error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToSet),
			fmt.Sprintf("[REDIS] failed `SETNX` by `%s`", key),
		)
	}

	return ok, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, yaerrors.Error) {
	value, err := r.client.Get(ctx, key).Result()

	return value, r.readError(err, "GET", key)
}

func (r *Redis) GetDel(ctx context.Context, key string) (string, yaerrors.Error) {
	value, err := r.client.GetDel(ctx, key).Result()

	return value, r.readError(err, "GETDEL", key)
}

func (r *Redis) Exists(ctx context.Context, keys ...string) (int64, yaerrors.Error) {
	count, err := r.client.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToGet),
			fmt.Sprintf("[REDIS] failed `EXISTS` by `%v`", keys),
		)
	}

	return count, nil
}

func (r *Redis) Del(ctx context.Context, keys ...string) yaerrors.Error {
	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToDelete),
			fmt.Sprintf("[REDIS] failed `DEL` by `%v`", keys),
		)
	}

	return nil
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, yaerrors.Error) {
	var (
		ok  bool
		err error
	)

	if ttl <= 0 {
		ok, err = r.client.Persist(ctx, key).Result()
	} else {
		ok, err = r.client.Expire(ctx, key, ttl).Result()
	}

	if err != nil {
		return false, yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToSetExpire),
			fmt.Sprintf("[REDIS] failed `EXPIRE` by `%s`", key),
		)
	}

	return ok, nil
}

func (r *Redis) Ping(ctx context.Context) yaerrors.Error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToPing),
			"[REDIS] failed `PING`",
		)
	}

	return nil
}

func (r *Redis) Close() yaerrors.Error {
	if err := r.client.Close(); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToClose),
			"[REDIS] failed to close client",
		)
	}

	return nil
}

func (r *Redis) readError(err error, command string, key string) yaerrors.Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return yaerrors.FromError(
			http.StatusNotFound,
			ErrKeyNotFound,
			fmt.Sprintf("[REDIS] failed `%s` by `%s`", command, key),
		)
	default:
		return yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToGet),
			fmt.Sprintf("[REDIS] failed `%s` by `%s`", command, key),
		)
	}
}
