package yafsm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/YaCodeDev/GoYaBotKit/yaencoding"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the database model of one FSM record.
type Record struct {
	BotID     int64     `gorm:"primaryKey;autoIncrement:false"`
	ChatID    int64     `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64     `gorm:"primaryKey;autoIncrement:false"`
	Destiny   string    `gorm:"primaryKey;size:64"`
	State     *string   `gorm:"size:255"`
	Data      []byte    `gorm:"type:blob"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Record) TableName() string {
	return "fsm_records"
}

// Column names used in upserts.
const (
	FieldState     = "state"
	FieldData      = "data"
	FieldUpdatedAt = "updated_at"
)

var recordPrimaryKey = []clause.Column{
	{Name: "bot_id"},
	{Name: "chat_id"},
	{Name: "user_id"},
	{Name: "destiny"},
}

// GormStorage keeps records in a SQL table through gorm. Data is JSON encoded
// by default. UpdateData runs in a transaction guarded by an in-process key lock.
type GormStorage struct {
	poolDB *gorm.DB
	codec  yaencoding.Codec
	locks  keyedLock[StorageKey]
}

var _ StateStorage = (*GormStorage)(nil)

// GormOption customises a GormStorage.
type GormOption func(*GormStorage)

func WithGormCodec(codec yaencoding.Codec) GormOption {
	return func(g *GormStorage) { g.codec = codec }
}

// NewGormStorage migrates the fsm_records table and returns the storage.
//
// Example:
//
//	poolDB, _ := gorm.Open(sqlite.Open("bot.db"), &gorm.Config{})
//	storage, err := yafsm.NewGormStorage(poolDB)
func NewGormStorage(poolDB *gorm.DB, opts ...GormOption) (*GormStorage, yaerrors.Error) {
	if err := poolDB.AutoMigrate(&Record{}); err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[GORM] failed to make auto migrate",
		)
	}

	storage := &GormStorage{
		poolDB: poolDB,
		codec:  yaencoding.JSON{},
	}

	for _, opt := range opts {
		opt(storage)
	}

	return storage, nil
}

func (g *GormStorage) SetState(ctx context.Context, key StorageKey, state *string) yaerrors.Error {
	key = key.normalized()

	if err := g.upsert(g.poolDB.WithContext(ctx), key, &Record{State: cloneState(state)}, FieldState); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			fmt.Sprintf("[GORM] failed to set state by `%s`", key),
		)
	}

	return nil
}

func (g *GormStorage) GetState(ctx context.Context, key StorageKey) (*string, yaerrors.Error) {
	record, err := g.fetch(g.poolDB.WithContext(ctx), key.normalized())
	if err != nil {
		return nil, err.Wrap("[GORM] failed to get state")
	}

	if record == nil {
		return nil, nil
	}

	return record.State, nil
}

func (g *GormStorage) SetData(ctx context.Context, key StorageKey, data map[string]any) yaerrors.Error {
	key = key.normalized()

	raw, yaErr := g.codec.Marshal(cloneData(data))
	if yaErr != nil {
		return yaErr.Wrap(fmt.Sprintf("[GORM] failed to encode data by `%s`", key))
	}

	if err := g.upsert(g.poolDB.WithContext(ctx), key, &Record{Data: raw}, FieldData); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToWriteData),
			fmt.Sprintf("[GORM] failed to set data by `%s`", key),
		)
	}

	return nil
}

func (g *GormStorage) GetData(ctx context.Context, key StorageKey) (map[string]any, yaerrors.Error) {
	record, err := g.fetch(g.poolDB.WithContext(ctx), key.normalized())
	if err != nil {
		return nil, err.Wrap("[GORM] failed to get data")
	}

	return g.decode(record)
}

func (g *GormStorage) UpdateData(
	ctx context.Context,
	key StorageKey,
	data map[string]any,
) (map[string]any, yaerrors.Error) {
	key = key.normalized()

	unlock, yaErr := g.locks.Lock(ctx, key)
	if yaErr != nil {
		return nil, yaErr.Wrap("[GORM] failed to update data")
	}
	defer unlock()

	var merged map[string]any

	err := g.poolDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, yaErr := g.fetch(tx, key)
		if yaErr != nil {
			return yaErr
		}

		current, yaErr := g.decode(record)
		if yaErr != nil {
			return yaErr
		}

		merged = mergeData(current, data)

		raw, yaErr := g.codec.Marshal(merged)
		if yaErr != nil {
			return yaErr
		}

		return g.upsert(tx, key, &Record{Data: raw}, FieldData)
	})
	if err != nil {
		if yaErr, ok := yaerrors.As(err); ok {
			return nil, yaErr.Wrap("[GORM] failed to update data")
		}

		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrTransactionFailed),
			fmt.Sprintf("[GORM] failed to update data by `%s`", key),
		)
	}

	return merged, nil
}

// Lock takes the in-process FIFO lock of key.
func (g *GormStorage) Lock(ctx context.Context, key StorageKey) (func(), yaerrors.Error) {
	unlock, err := g.locks.Lock(ctx, key.normalized())
	if err != nil {
		return nil, err.Wrap("[GORM] failed to lock fsm record")
	}

	return unlock, nil
}

// Close closes the underlying sql.DB.
func (g *GormStorage) Close() yaerrors.Error {
	sqlDB, err := g.poolDB.DB()
	if err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[GORM] failed to get sql db",
		)
	}

	if err := sqlDB.Close(); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[GORM] failed to close sql db",
		)
	}

	return nil
}

func (g *GormStorage) upsert(poolDB *gorm.DB, key StorageKey, record *Record, field string) error {
	record.BotID = key.BotID
	record.ChatID = key.ChatID
	record.UserID = key.UserID
	record.Destiny = key.Destiny

	return poolDB.
		Clauses(clause.OnConflict{
			Columns:   recordPrimaryKey,
			DoUpdates: clause.AssignmentColumns([]string{field, FieldUpdatedAt}),
		}).
		Create(record).Error
}

func (g *GormStorage) fetch(poolDB *gorm.DB, key StorageKey) (*Record, yaerrors.Error) {
	var record Record

	err := poolDB.
		Where(
			"bot_id = ? AND chat_id = ? AND user_id = ? AND destiny = ?",
			key.BotID, key.ChatID, key.UserID, key.Destiny,
		).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			errors.Join(err, ErrFailedToReadData),
			fmt.Sprintf("[GORM] failed to fetch record by `%s`", key),
		)
	}

	return &record, nil
}

func (g *GormStorage) decode(record *Record) (map[string]any, yaerrors.Error) {
	if record == nil || len(record.Data) == 0 {
		return map[string]any{}, nil
	}

	data, err := g.codec.UnmarshalMap(record.Data)
	if err != nil {
		return nil, err.Wrap("[GORM] failed to decode data")
	}

	return data, nil
}
