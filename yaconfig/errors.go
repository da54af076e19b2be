package yaconfig

import "errors"

var (
	ErrFailedToParse    = errors.New("failed to parse config from environment")
	ErrUnknownBackend   = errors.New("unknown backend")
	ErrUnknownCodec     = errors.New("unknown codec")
	ErrFailedToOpenDB   = errors.New("failed to open database")
	ErrMissingRedisAddr = errors.New("redis address is empty")
)
