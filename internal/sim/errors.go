package sim

import "errors"

var (
	ErrInboxFull     = errors.New("inbox full")
	ErrInboxClosed   = errors.New("inbox closed")
	ErrNoLocalPlayer = errors.New("local player not spawned")
	ErrUnknownIntent = errors.New("unknown outbound intent")
)
