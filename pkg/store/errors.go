package store

import "errors"

var (
	ErrNotFound         = errors.New("store: automation not found")
	ErrCapacityExceeded = errors.New("store: capacity exceeded")
	ErrStorageError     = errors.New("store: durable write failed")
	ErrInvalidArgument  = errors.New("store: invalid argument")
)
