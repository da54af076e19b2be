package yacache

import "errors"

var (
	ErrKeyNotFound       = errors.New("key not found")
	ErrFailedToSet       = errors.New("failed to set value")
	ErrFailedToGet       = errors.New("failed to get value")
	ErrFailedToDelete    = errors.New("failed to delete value")
	ErrFailedToPing      = errors.New("failed to ping")
	ErrFailedToClose     = errors.New("failed to close")
	ErrFailedToSetExpire = errors.New("failed to set expire")
)
