package server

import "errors"

var (
	ErrStopped     = errors.New("flakegen: server stopped")
	ErrInvalidArgs = errors.New("flakegen: invalid arguments")
)
