// Package yalogger defines the structured logger used by every package of the
// module and a logrus backed implementation of it.
//
// Example usage:
//
//	log := yalogger.NewBaseLogger(&yalogger.Config{Level: yalogger.InfoLevel}).NewLogger()
//	log.WithRequestUUID(uuid.New()).WithUserID(42).Info("update received")
package yalogger

import (
	"io"

	"github.com/google/uuid"
)

// Config defines the configuration options for the logger.
//
// BaseLoggerType: backend to use (only Logrus for now).
// Level: minimum level written.
// FullTimestamp, DisableTimestamp, TimestampFormat: text formatter settings.
// JSON: use the JSON formatter instead of the text one.
// Output: destination writer, stderr when nil.
type Config struct {
	BaseLoggerType   BaseLoggerType
	Level            Level
	FullTimestamp    bool
	DisableTimestamp bool
	TimestampFormat  string
	JSON             bool
	Output           io.Writer
}

// BaseLogger creates request scoped Logger instances sharing one backend.
type BaseLogger interface {
	NewLogger() Logger
}

// Logger is a structured logger. The With* methods return a derived logger and
// never modify the receiver, so a logger can be shared between goroutines and
// specialised per update.
type Logger interface {
	// Info logs a message at the Info level.
	//
	// Example usage:
	//
	//   logger.Info("dispatcher started")
	Info(msg string)

	// Infof logs a formatted message at the Info level.
	Infof(format string, args ...any)

	// Trace logs very fine grained routing details.
	Trace(msg string)

	// Tracef logs a formatted message at the Trace level.
	Tracef(format string, args ...any)

	// Error logs a message at the Error level.
	//
	// Example usage:
	//
	//   logger.Error("failed to release conversation lock")
	Error(msg string)

	// Errorf logs a formatted message at the Error level.
	Errorf(format string, args ...any)

	// Warn logs a message at the Warn level.
	Warn(msg string)

	// Warnf logs a formatted message at the Warn level.
	//
	// Example usage:
	//
	//   logger.Warnf("filter %T failed: %v", filter, err)
	Warnf(format string, args ...any)

	// Debug logs a message at the Debug level.
	Debug(msg string)

	// Debugf logs a formatted message at the Debug level.
	Debugf(format string, args ...any)

	// Fatal logs a message and terminates the process.
	Fatal(msg string)

	// Fatalf logs a formatted message and terminates the process.
	Fatalf(format string, args ...any)

	// WithField returns a logger with one extra field.
	//
	// Example usage:
	//
	//   logger.WithField("destiny", "scenes_history").Debug("history pushed")
	WithField(key string, value any) Logger

	// WithFields returns a logger with several extra fields.
	WithFields(fields map[string]any) Logger

	// WithRequestStringID returns a logger tagged with a string request id.
	WithRequestStringID(id string) Logger

	// WithRequestUUID returns a logger tagged with a uuid request id.
	//
	// Example usage:
	//
	//   logger.WithRequestUUID(uuid.New())
	WithRequestUUID(id uuid.UUID) Logger

	// WithRequestID returns a logger tagged with a numeric request id.
	WithRequestID(id uint64) Logger

	// WithRandomRequestID returns a logger tagged with a fresh uuid request id.
	WithRandomRequestID() Logger

	// WithSystemRequestID returns a logger tagged with a system config id.
	WithSystemRequestID(id uint8) Logger

	// WithUserID returns a logger tagged with a user id.
	WithUserID(userID int64) Logger

	// GetFields returns a copy of the fields attached to the logger.
	GetFields() map[string]any

	// GetField returns one field value or nil.
	//
	// Example usage:
	//
	//   requestID, ok := logger.GetField(yalogger.KeyRequestID).(uuid.UUID)
	GetField(key string) any
}

// NewLogger is a shortcut for NewBaseLogger(nil).NewLogger().
func NewLogger() Logger {
	return NewBaseLogger(nil).NewLogger()
}
