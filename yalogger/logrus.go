package yalogger

import (
	"maps"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type logrusAdapter struct {
	entry *logrus.Entry
}

type baseLogrus struct {
	logger *logrus.Logger
}

// NewBaseLogger configures a backend from config. A nil config means logrus,
// debug level and the default timestamp format.
//
// Panics on an unknown BaseLoggerType.
func NewBaseLogger(config *Config) BaseLogger {
	if config == nil {
		config = &Config{
			BaseLoggerType:  Logrus,
			Level:           DebugLevel,
			TimestampFormat: DefaultTimestampFormat,
		}
	}

	switch config.BaseLoggerType {
	case Logrus:
		return &baseLogrus{logger: newLogrus(config)}
	default:
		panic("unsupported logger type, you are a teapot")
	}
}

// NewLogrusLogger wraps an already configured logrus logger, useful when the
// application owns the logrus instance or in tests with logrus hooks.
func NewLogrusLogger(logger *logrus.Logger) Logger {
	return &logrusAdapter{entry: logrus.NewEntry(logger)}
}

func newLogrus(config *Config) *logrus.Logger {
	base := logrus.New()
	base.SetLevel(logrus.Level(config.Level))

	timestampFormat := config.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = DefaultTimestampFormat
	}

	if config.JSON {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:  timestampFormat,
			DisableTimestamp: config.DisableTimestamp,
		})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    config.FullTimestamp,
			TimestampFormat:  timestampFormat,
			DisableTimestamp: config.DisableTimestamp,
		})
	}

	if config.Output != nil {
		base.SetOutput(config.Output)
	}

	return base
}

func (b *baseLogrus) NewLogger() Logger {
	return &logrusAdapter{entry: logrus.NewEntry(b.logger)}
}

func (l *logrusAdapter) Info(msg string) { l.entry.Info(msg) }

func (l *logrusAdapter) Infof(format string, args ...any) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Trace(msg string) { l.entry.Trace(msg) }

func (l *logrusAdapter) Tracef(format string, args ...any) { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) Error(msg string) { l.entry.Error(msg) }

func (l *logrusAdapter) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Warn(msg string) { l.entry.Warn(msg) }

func (l *logrusAdapter) Warnf(format string, args ...any) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Debug(msg string) { l.entry.Debug(msg) }

func (l *logrusAdapter) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Fatal(msg string) { l.entry.Fatal(msg) }

func (l *logrusAdapter) Fatalf(format string, args ...any) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) WithField(key string, value any) Logger {
	return &logrusAdapter{entry: l.entry.WithField(key, value)}
}

func (l *logrusAdapter) WithFields(fields map[string]any) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}

func (l *logrusAdapter) WithRequestStringID(id string) Logger {
	return l.WithField(KeyRequestID, id)
}

func (l *logrusAdapter) WithRequestUUID(id uuid.UUID) Logger {
	return l.WithField(KeyRequestID, id)
}

func (l *logrusAdapter) WithRequestID(id uint64) Logger {
	return l.WithField(KeyRequestID, id)
}

func (l *logrusAdapter) WithRandomRequestID() Logger {
	id, err := uuid.NewRandom()
	if err != nil {
		return l.WithRequestID(rand.Uint64())
	}

	return l.WithRequestUUID(id)
}

func (l *logrusAdapter) WithSystemRequestID(id uint8) Logger {
	return l.WithField(KeySystemRequestID, id)
}

func (l *logrusAdapter) WithUserID(userID int64) Logger {
	return l.WithField(KeyUserID, userID)
}

func (l *logrusAdapter) GetFields() map[string]any {
	return maps.Clone(map[string]any(l.entry.Data))
}

func (l *logrusAdapter) GetField(key string) any {
	return l.entry.Data[key]
}
