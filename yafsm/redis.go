package yafsm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/YaCodeDev/GoYaBotKit/yabackoff"
	"github.com/YaCodeDev/GoYaBotKit/yacache"
	"github.com/YaCodeDev/GoYaBotKit/yaencoding"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yalogger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Key parts appended by KeyBuilder.
const (
	PartState = "state"
	PartData  = "data"
	PartLock  = "lock"
)

// PartRecordLock keeps storage locks apart from event isolation locks.
const PartRecordLock = "record_lock"

const (
	defaultKeyPrefix       = "fsm"
	defaultKeySeparator    = ":"
	defaultLockTTL         = 60 * time.Second
	defaultUpdateDataTries = 16
)

// KeyBuilder renders the redis key of one record part.
type KeyBuilder interface {
	Build(key StorageKey, part string) string
}

// DefaultKeyBuilder renders prefix:bot:chat:user:destiny:part. The bot id and
// the destiny can be omitted, a non default destiny is always kept so scene
// history never collides with the main record.
type DefaultKeyBuilder struct {
	Prefix      string
	Separator   string
	WithBotID   bool
	WithDestiny bool
}

// Build implements KeyBuilder.
//
// Example:
//
//	DefaultKeyBuilder{WithBotID: true, WithDestiny: true}.Build(key, PartState)
//	// "fsm:42:-100:7:default:state"
func (b DefaultKeyBuilder) Build(key StorageKey, part string) string {
	prefix := b.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	separator := b.Separator
	if separator == "" {
		separator = defaultKeySeparator
	}

	key = key.normalized()

	parts := []string{prefix}

	if b.WithBotID {
		parts = append(parts, strconv.FormatInt(key.BotID, 10))
	}

	parts = append(parts, strconv.FormatInt(key.ChatID, 10), strconv.FormatInt(key.UserID, 10))

	if b.WithDestiny || key.Destiny != DefaultDestiny {
		parts = append(parts, key.Destiny)
	}

	parts = append(parts, part)

	return strings.Join(parts, separator)
}

// RedisStorage keeps records in redis. Data is encoded with the configured
// codec, msgpack by default.
type RedisStorage struct {
	client     *redis.Client
	keyBuilder KeyBuilder
	codec      yaencoding.Codec
	stateTTL   time.Duration
	dataTTL    time.Duration
	locker     *redisLocker
}

var _ StateStorage = (*RedisStorage)(nil)

// RedisOption customises a RedisStorage.
type RedisOption func(*RedisStorage)

func WithKeyBuilder(builder KeyBuilder) RedisOption {
	return func(r *RedisStorage) { r.keyBuilder = builder }
}

// WithStateTTL expires state keys after ttl. Zero keeps them forever.
func WithStateTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStorage) { r.stateTTL = ttl }
}

// WithDataTTL expires data keys after ttl. Zero keeps them forever.
func WithDataTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStorage) { r.dataTTL = ttl }
}

func WithCodec(codec yaencoding.Codec) RedisOption {
	return func(r *RedisStorage) { r.codec = codec }
}

// WithLockTTL bounds how long a crashed holder can keep a lock.
func WithLockTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStorage) { r.locker.ttl = ttl }
}

// WithRedisLogger receives lock release failures.
func WithRedisLogger(log yalogger.Logger) RedisOption {
	return func(r *RedisStorage) { r.locker.log = log }
}

// NewRedisStorage wraps client. The storage owns the client and closes it on Close.
//
// Example:
//
//	storage := yafsm.NewRedisStorage(client, yafsm.WithStateTTL(24*time.Hour))
func NewRedisStorage(client *redis.Client, opts ...RedisOption) *RedisStorage {
	storage := &RedisStorage{
		client:     client,
		keyBuilder: DefaultKeyBuilder{WithBotID: true, WithDestiny: true},
		codec:      yaencoding.MessagePack{},
		locker:     newRedisLocker(client, defaultLockTTL),
	}

	for _, opt := range opts {
		opt(storage)
	}

	return storage
}

func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

func (r *RedisStorage) SetState(ctx context.Context, key StorageKey, state *string) yaerrors.Error {
	redisKey := r.keyBuilder.Build(key, PartState)

	var err error

	if state == nil {
		err = r.client.Del(ctx, redisKey).Err()
	} else {
		err = r.client.Set(ctx, redisKey, *state, r.stateTTL).Err()
	}

	if err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			fmt.Sprintf("[REDIS] failed to set state by `%s`", redisKey),
		)
	}

	return nil
}

func (r *RedisStorage) GetState(ctx context.Context, key StorageKey) (*string, yaerrors.Error) {
	redisKey := r.keyBuilder.Build(key, PartState)

	value, err := r.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			fmt.Sprintf("[REDIS] failed to get state by `%s`", redisKey),
		)
	}

	return &value, nil
}

func (r *RedisStorage) SetData(ctx context.Context, key StorageKey, data map[string]any) yaerrors.Error {
	redisKey := r.keyBuilder.Build(key, PartData)

	return r.writeData(ctx, r.client, redisKey, data)
}

func (r *RedisStorage) GetData(ctx context.Context, key StorageKey) (map[string]any, yaerrors.Error) {
	redisKey := r.keyBuilder.Build(key, PartData)

	return r.readData(ctx, r.client, redisKey)
}

// UpdateData merges data inside a WATCH/MULTI transaction and retries when
// another writer touched the key in between.
func (r *RedisStorage) UpdateData(
	ctx context.Context,
	key StorageKey,
	data map[string]any,
) (map[string]any, yaerrors.Error) {
	redisKey := r.keyBuilder.Build(key, PartData)

	var merged map[string]any

	transaction := func(tx *redis.Tx) error {
		current, yaErr := r.readData(ctx, tx, redisKey)
		if yaErr != nil {
			return yaErr
		}

		merged = mergeData(current, data)

		raw, yaErr := r.codec.Marshal(merged)
		if yaErr != nil {
			return yaErr
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(merged) == 0 {
				pipe.Del(ctx, redisKey)
			} else {
				pipe.Set(ctx, redisKey, raw, r.dataTTL)
			}

			return nil
		})

		return err
	}

	for range defaultUpdateDataTries {
		err := r.client.Watch(ctx, transaction, redisKey)
		if err == nil {
			return merged, nil
		}

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if yaErr, ok := yaerrors.As(err); ok {
			return nil, yaErr.Wrap("[REDIS] failed to update data")
		}

		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToWriteData),
			fmt.Sprintf("[REDIS] failed to update data by `%s`", redisKey),
		)
	}

	return nil, yaerrors.FromError(
		http.StatusConflict,
		ErrTransactionFailed,
		fmt.Sprintf("[REDIS] too many concurrent updates of `%s`", redisKey),
	)
}

// Lock takes a distributed lock on key.
func (r *RedisStorage) Lock(ctx context.Context, key StorageKey) (func(), yaerrors.Error) {
	return r.locker.Lock(ctx, r.keyBuilder.Build(key, PartRecordLock))
}

func (r *RedisStorage) Close() yaerrors.Error {
	if err := r.client.Close(); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[REDIS] failed to close fsm storage",
		)
	}

	return nil
}

func (r *RedisStorage) readData(ctx context.Context, cmd redis.Cmdable, redisKey string) (map[string]any, yaerrors.Error) {
	raw, err := cmd.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]any{}, nil
	}

	if err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToReadData),
			fmt.Sprintf("[REDIS] failed to get data by `%s`", redisKey),
		)
	}

	data, yaErr := r.codec.UnmarshalMap(raw)
	if yaErr != nil {
		return nil, yaErr.Wrap(fmt.Sprintf("[REDIS] failed to decode data by `%s`", redisKey))
	}

	return data, nil
}

func (r *RedisStorage) writeData(
	ctx context.Context,
	cmd redis.Cmdable,
	redisKey string,
	data map[string]any,
) yaerrors.Error {
	if len(data) == 0 {
		if err := cmd.Del(ctx, redisKey).Err(); err != nil {
			return yaerrors.FromError(
				http.StatusInternalServerError,
				errors.Join(err, ErrFailedToWriteData),
				fmt.Sprintf("[REDIS] failed to delete data by `%s`", redisKey),
			)
		}

		return nil
	}

	raw, yaErr := r.codec.Marshal(data)
	if yaErr != nil {
		return yaErr.Wrap(fmt.Sprintf("[REDIS] failed to encode data by `%s`", redisKey))
	}

	if err := cmd.Set(ctx, redisKey, raw, r.dataTTL).Err(); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToWriteData),
			fmt.Sprintf("[REDIS] failed to set data by `%s`", redisKey),
		)
	}

	return nil
}

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisLocker is a token lock: SET NX PX to acquire, compare-and-delete to release.
type redisLocker struct {
	cache yacache.Cache[*redis.Client]
	ttl   time.Duration
	log   yalogger.Logger
}

func newRedisLocker(client *redis.Client, ttl time.Duration) *redisLocker {
	return &redisLocker{
		cache: yacache.NewCache(client),
		ttl:   ttl,
		log:   yalogger.NewLogger(),
	}
}

func (l *redisLocker) Lock(ctx context.Context, redisKey string) (func(), yaerrors.Error) {
	token := uuid.NewString()
	backoff := yabackoff.NewExponential(5*time.Millisecond, 2, 500*time.Millisecond)

	for {
		acquired, err := l.cache.SetNX(ctx, redisKey, token, l.ttl)
		if err != nil && ctx.Err() == nil {
			return nil, err.Wrap("[REDIS] failed to acquire lock")
		}

		if acquired {
			return l.releaser(redisKey, token), nil
		}

		// A SetNX failure caused by ctx lands here as well.
		if err := backoff.WaitContext(ctx); err != nil {
			return nil, yaerrors.FromError(
				http.StatusRequestTimeout,
				errors.Join(err, ErrLockNotAcquired),
				fmt.Sprintf("[REDIS] failed to acquire `%s`", redisKey),
			)
		}
	}
}

// releaser runs on a fresh context so a cancelled request still frees the lock.
func (l *redisLocker) releaser(redisKey string, token string) func() {
	var once sync.Once

	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := releaseLockScript.Run(ctx, l.cache.Raw(), []string{redisKey}, token).Err(); err != nil {
				l.log.Warnf("[REDIS] failed to release `%s`, held until ttl: %v", redisKey, err)
			}
		})
	}
}
