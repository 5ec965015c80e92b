package transport

import "errors"

var (
	ErrClosed        = errors.New("transport: closed")
	ErrNoListenAddr  = errors.New("transport: listen address required")
	ErrDuplicatePeer = errors.New("transport: peer already joined")
)
