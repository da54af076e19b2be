package yaconfig

import (
	"context"
	"fmt"
	"net/http"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yacache"
	"github.com/YaCodeDev/GoYaBotKit/yaencoding"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yafsm"
	"github.com/YaCodeDev/GoYaBotKit/yalogger"
	"github.com/YaCodeDev/GoYaBotKit/yamessagequeue"
	"github.com/YaCodeDev/GoYaBotKit/yaratelimit"
	"github.com/YaCodeDev/GoYaBotKit/yascene"
	"github.com/YaCodeDev/GoYaBotKit/yawebhook"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

// ThrottlingGroup is the limiter group of the update level throttling.
const ThrottlingGroup = "update"

// NewLogger builds a logrus backed logger from the LOG_ settings.
func (c *Config) NewLogger() yalogger.Logger {
	return yalogger.NewBaseLogger(&yalogger.Config{
		BaseLoggerType:  yalogger.Logrus,
		Level:           c.Logger.Level,
		JSON:            c.Logger.JSON,
		FullTimestamp:   c.Logger.FullTimestamp,
		TimestampFormat: c.Logger.TimestampFormat,
	}).NewLogger()
}

// NewRedisClient dials the configured redis server.
func (c *Config) NewRedisClient(log yalogger.Logger) (*redis.Client, yaerrors.Error) {
	if c.Redis.Addr == "" {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			ErrMissingRedisAddr,
			"[CONFIG] failed to build redis client",
		)
	}

	return yacache.NewRedisClient(c.Redis.Addr, c.Redis.Password, c.Redis.DB, log), nil
}

// Codec resolves the storage codec. An empty name picks the backend default.
func (c *Config) Codec() (yaencoding.Codec, yaerrors.Error) {
	switch c.Storage.Codec {
	case CodecMessagePack:
		return yaencoding.MessagePack{}, nil
	case CodecJSON:
		return yaencoding.JSON{}, nil
	case "":
		if c.Storage.Backend == BackendSQLite {
			return yaencoding.JSON{}, nil
		}

		return yaencoding.MessagePack{}, nil
	default:
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			ErrUnknownCodec,
			fmt.Sprintf("[CONFIG] unknown codec `%s`", c.Storage.Codec),
		)
	}
}

// NewStorage builds the FSM storage. The redis backend requires client.
func (c *Config) NewStorage(
	client *redis.Client,
	opts ...yafsm.RedisOption,
) (yafsm.StateStorage, yaerrors.Error) {
	codec, err := c.Codec()
	if err != nil {
		return nil, err
	}

	switch c.Storage.Backend {
	case BackendMemory:
		return yafsm.NewMemoryStorage(), nil
	case BackendRedis:
		if client == nil {
			return nil, yaerrors.FromError(
				http.StatusInternalServerError,
				ErrMissingRedisAddr,
				"[CONFIG] redis storage needs a client",
			)
		}

		return yafsm.NewRedisStorage(
			client,
			append([]yafsm.RedisOption{
				yafsm.WithKeyBuilder(c.keyBuilder()),
				yafsm.WithCodec(codec),
				yafsm.WithStateTTL(c.Storage.StateTTL),
				yafsm.WithDataTTL(c.Storage.DataTTL),
				yafsm.WithLockTTL(c.Isolation.LockTTL),
			}, opts...)...,
		), nil
	case BackendSQLite:
		poolDB, openErr := gorm.Open(sqlite.Dialector{
			DriverName: "sqlite",
			DSN:        c.Storage.SQLitePath,
		}, &gorm.Config{})
		if openErr != nil {
			return nil, yaerrors.FromError(
				http.StatusInternalServerError,
				fmt.Errorf("%w: %w", ErrFailedToOpenDB, openErr),
				fmt.Sprintf("[CONFIG] failed to open sqlite `%s`", c.Storage.SQLitePath),
			)
		}

		return yafsm.NewGormStorage(poolDB, yafsm.WithGormCodec(codec))
	default:
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			ErrUnknownBackend,
			fmt.Sprintf("[CONFIG] unknown storage backend `%s`", c.Storage.Backend),
		)
	}
}

// NewIsolation builds the event isolation. The redis backend requires client.
func (c *Config) NewIsolation(
	client *redis.Client,
	opts ...yafsm.RedisOption,
) (yafsm.EventIsolation, yaerrors.Error) {
	switch c.Isolation.Backend {
	case BackendDisabled:
		return yafsm.DisabledEventIsolation{}, nil
	case BackendMemory:
		return yafsm.NewMemoryEventIsolation(), nil
	case BackendRedis:
		if client == nil {
			return nil, yaerrors.FromError(
				http.StatusInternalServerError,
				ErrMissingRedisAddr,
				"[CONFIG] redis isolation needs a client",
			)
		}

		return yafsm.NewRedisEventIsolation(
			client,
			append([]yafsm.RedisOption{
				yafsm.WithKeyBuilder(c.keyBuilder()),
				yafsm.WithLockTTL(c.Isolation.LockTTL),
			}, opts...)...,
		), nil
	default:
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			ErrUnknownBackend,
			fmt.Sprintf("[CONFIG] unknown isolation backend `%s`", c.Isolation.Backend),
		)
	}
}

// NewLimiter builds the throttling limiter, nil when throttling is disabled.
func (c *Config) NewLimiter(client *redis.Client) (yaratelimit.Limiter, yaerrors.Error) {
	if !c.Throttling.Enabled {
		return nil, nil
	}

	switch c.Throttling.Backend {
	case BackendMemory:
		return yaratelimit.NewRateLimit(
			yacache.NewCache(yacache.NewMemoryContainer()),
			c.Throttling.Limit,
			c.Throttling.Rate,
		), nil
	case BackendRedis:
		if client == nil {
			return nil, yaerrors.FromError(
				http.StatusInternalServerError,
				ErrMissingRedisAddr,
				"[CONFIG] redis throttling needs a client",
			)
		}

		return yaratelimit.NewRateLimit(yacache.NewCache(client), c.Throttling.Limit, c.Throttling.Rate), nil
	default:
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			ErrUnknownBackend,
			fmt.Sprintf("[CONFIG] unknown throttling backend `%s`", c.Throttling.Backend),
		)
	}
}

// NewDispatcher wires storage, isolation and throttling into a dispatcher.
// All redis backed components share one client.
//
// Example:
//
//	dp, err := cfg.NewDispatcher(cfg.NewLogger())
//	registry := cfg.NewRegistry(dp)
func (c *Config) NewDispatcher(log yalogger.Logger) (*yabot.Dispatcher, yaerrors.Error) {
	if log == nil {
		log = c.NewLogger()
	}

	var client *redis.Client

	if c.usesRedis() {
		var err yaerrors.Error

		client, err = c.NewRedisClient(log)
		if err != nil {
			return nil, err
		}
	}

	storage, err := c.NewStorage(client, yafsm.WithRedisLogger(log))
	if err != nil {
		return nil, err.Wrap("[CONFIG] failed to build dispatcher")
	}

	isolation, err := c.NewIsolation(client, yafsm.WithRedisLogger(log))
	if err != nil {
		return nil, err.Wrap("[CONFIG] failed to build dispatcher")
	}

	limiter, err := c.NewLimiter(client)
	if err != nil {
		return nil, err.Wrap("[CONFIG] failed to build dispatcher")
	}

	dp := yabot.NewDispatcher(yabot.Options{
		Name:       c.Name,
		Storage:    storage,
		Isolation:  isolation,
		Strategy:   c.Strategy,
		Logger:     log,
		DisableFSM: c.DisableFSM,
	})

	if limiter != nil {
		dp.Update.OuterMiddleware(yabot.ThrottlingMiddleware(limiter, ThrottlingGroup))
	}

	// The redis storage owns the client, any other user leaves it to us.
	if client != nil && c.Storage.Backend != BackendRedis {
		dp.Shutdown(func(context.Context, *yabot.Context) error {
			return client.Close()
		})
	}

	return dp, nil
}

// WrapBot paces the outbound calls of bot when the queue is enabled. The
// queue workers stop with ctx.
func (c *Config) WrapBot(ctx context.Context, bot yabot.Bot, log yalogger.Logger) yabot.Bot {
	if !c.Queue.Enabled {
		return bot
	}

	queue := yamessagequeue.New(bot, yamessagequeue.Options{
		Workers:  c.Queue.Workers,
		Interval: c.Queue.Interval,
		Logger:   log,
	})
	queue.Start(ctx)

	return queue
}

// WebhookOptions converts the WEBHOOK_ settings for yawebhook.NewHandler.
func (c *Config) WebhookOptions(log yalogger.Logger) yawebhook.Options {
	return yawebhook.Options{
		SecretToken: c.Webhook.SecretToken,
		Background:  c.Webhook.Background,
		Logger:      log,
	}
}

// NewRegistry attaches a scene registry with the configured history size.
func (c *Config) NewRegistry(dp *yabot.Dispatcher) *yascene.Registry {
	return yascene.NewRegistry(dp.Router, yascene.WithHistorySize(c.HistorySize))
}

func (c *Config) keyBuilder() yafsm.KeyBuilder {
	return yafsm.DefaultKeyBuilder{
		Prefix:      c.Storage.Prefix,
		WithBotID:   true,
		WithDestiny: true,
	}
}
