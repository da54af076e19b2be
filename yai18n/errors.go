package yai18n

import "errors"

var (
	ErrInvalidLocaleFile = errors.New("invalid locale file")
	ErrKeyNotFound       = errors.New("locale key not found")
	ErrMissingFormatArgs = errors.New("missing format arguments")
)
