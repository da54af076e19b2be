package yascene

import "errors"

var (
	ErrSceneAlreadyRegistered = errors.New("scene is already registered")
	ErrSceneNotRegistered     = errors.New("scene is not registered")
	ErrDefaultSceneRetake     = errors.New("default scene can not be retaken")
	ErrNoFSMContext           = errors.New("event has no fsm context")
)
