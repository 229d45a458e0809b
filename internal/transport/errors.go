package transport

import "errors"

var (
	ErrClosed        = errors.New("transport closed")
	ErrSendQueueFull = errors.New("send queue full")
	ErrUnknownKind   = errors.New("unknown frame kind")
	ErrUnknownIntent = errors.New("unknown outbound intent")
)
