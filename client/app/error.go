package app

import "errors"

var (
	ErrClientStateInvalid = errors.New("client: invalid client state, you cannot execute this cmd now")
)
