// Package yaconfig reads the bot runtime configuration from the environment
// and turns it into ready components.
//
// Every variable may carry a prefix, for example with prefix "BOT_":
//
//	BOT_STRATEGY=chat
//	BOT_LOG_LEVEL=debug
//	BOT_STORAGE_BACKEND=redis
//	BOT_REDIS_ADDR=localhost:6379
//	BOT_ISOLATION_BACKEND=redis
//	BOT_THROTTLING_ENABLED=true
//	BOT_QUEUE_ENABLED=true
//	BOT_WEBHOOK_SECRET_TOKEN=secret
//
// Example usage:
//
//	cfg, err := yaconfig.Load("BOT_")
//	if err != nil {
//	    log.Fatalf("bad config: %v", err)
//	}
//
//	log := cfg.NewLogger()
//	dp, err := cfg.NewDispatcher(log)
package yaconfig

import (
	"fmt"
	"net/http"
	"time"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yafsm"
	"github.com/YaCodeDev/GoYaBotKit/yalogger"
	"github.com/caarlos0/env/v11"
)

// Storage and isolation backends.
const (
	BackendDisabled = "disabled"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
)

// Data codecs.
const (
	CodecMessagePack = "msgpack"
	CodecJSON        = "json"
)

type LoggerConfig struct {
	Level           yalogger.Level `env:"LEVEL"            envDefault:"info"`
	JSON            bool           `env:"JSON"`
	FullTimestamp   bool           `env:"FULL_TIMESTAMP"   envDefault:"true"`
	TimestampFormat string         `env:"TIMESTAMP_FORMAT" envDefault:"2006-01-02 15:04:05"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
}

type StorageConfig struct {
	// Backend is one of memory, redis or sqlite.
	Backend  string        `env:"BACKEND"   envDefault:"memory"`
	Prefix   string        `env:"PREFIX"    envDefault:"fsm"`
	Codec    string        `env:"CODEC"`
	StateTTL time.Duration `env:"STATE_TTL"`
	DataTTL  time.Duration `env:"DATA_TTL"`
	// SQLitePath is the database file of the sqlite backend.
	SQLitePath string `env:"SQLITE_PATH" envDefault:"fsm.db"`
}

type IsolationConfig struct {
	// Backend is one of disabled, memory or redis.
	Backend string        `env:"BACKEND"  envDefault:"disabled"`
	LockTTL time.Duration `env:"LOCK_TTL" envDefault:"60s"`
}

type ThrottlingConfig struct {
	Enabled bool          `env:"ENABLED"`
	Limit   uint32        `env:"LIMIT"   envDefault:"5"`
	Rate    time.Duration `env:"RATE"    envDefault:"1s"`
	// Backend is memory or redis.
	Backend string `env:"BACKEND" envDefault:"memory"`
}

type QueueConfig struct {
	Enabled  bool          `env:"ENABLED"`
	Workers  uint          `env:"WORKERS"  envDefault:"1"`
	Interval time.Duration `env:"INTERVAL" envDefault:"35ms"`
}

type WebhookConfig struct {
	Addr        string `env:"ADDR"         envDefault:":8080"`
	Path        string `env:"PATH"         envDefault:"/webhook"`
	SecretToken string `env:"SECRET_TOKEN"`
	Background  bool   `env:"BACKGROUND"`
}

// Config is the full runtime configuration.
type Config struct {
	Name        string         `env:"NAME"         envDefault:"dispatcher"`
	Strategy    yafsm.Strategy `env:"STRATEGY"     envDefault:"user_in_chat"`
	DisableFSM  bool           `env:"DISABLE_FSM"`
	HistorySize int            `env:"HISTORY_SIZE" envDefault:"10"`

	Logger     LoggerConfig     `envPrefix:"LOG_"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
	Storage    StorageConfig    `envPrefix:"STORAGE_"`
	Isolation  IsolationConfig  `envPrefix:"ISOLATION_"`
	Throttling ThrottlingConfig `envPrefix:"THROTTLING_"`
	Queue      QueueConfig      `envPrefix:"QUEUE_"`
	Webhook    WebhookConfig    `envPrefix:"WEBHOOK_"`
}

// Load reads the configuration from the process environment.
func Load(prefix string) (*Config, yaerrors.Error) {
	return parse(env.Options{Prefix: prefix})
}

// LoadEnvironment reads the configuration from environment instead of the
// process environment.
//
// Example:
//
//	cfg, err := yaconfig.LoadEnvironment("", map[string]string{"STORAGE_BACKEND": "redis"})
func LoadEnvironment(prefix string, environment map[string]string) (*Config, yaerrors.Error) {
	return parse(env.Options{Prefix: prefix, Environment: environment})
}

func parse(opts env.Options) (*Config, yaerrors.Error) {
	config := &Config{}

	if err := env.ParseWithOptions(config, opts); err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			fmt.Errorf("%w: %w", ErrFailedToParse, err),
			"[CONFIG] failed to load config",
		)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() yaerrors.Error {
	checks := []struct {
		name    string
		value   string
		allowed []string
		cause   error
	}{
		{"storage backend", c.Storage.Backend, []string{BackendMemory, BackendRedis, BackendSQLite}, ErrUnknownBackend},
		{"isolation backend", c.Isolation.Backend, []string{BackendDisabled, BackendMemory, BackendRedis}, ErrUnknownBackend},
		{"throttling backend", c.Throttling.Backend, []string{BackendMemory, BackendRedis}, ErrUnknownBackend},
		{"storage codec", c.Storage.Codec, []string{"", CodecMessagePack, CodecJSON}, ErrUnknownCodec},
	}

	for _, check := range checks {
		if !contains(check.allowed, check.value) {
			return yaerrors.FromError(
				http.StatusInternalServerError,
				check.cause,
				fmt.Sprintf("[CONFIG] %s `%s` is not one of %v", check.name, check.value, check.allowed),
			)
		}
	}

	return nil
}

// usesRedis reports whether any component needs the redis client.
func (c *Config) usesRedis() bool {
	return c.Storage.Backend == BackendRedis ||
		c.Isolation.Backend == BackendRedis ||
		(c.Throttling.Enabled && c.Throttling.Backend == BackendRedis)
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}

	return false
}
