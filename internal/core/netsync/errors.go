package netsync

import (
	"errors"

	"github.com/zeusync/arena/internal/core/combat"
)

var (
	ErrUnknownRemote = errors.New("unknown remote id")
	ErrRetiredRemote = errors.New("remote id already retired")
	ErrNoLocalEntity = errors.New("local entity not bound")
	// ErrMalformedPayload is shared with the combat engine so callers can test
	// for either source with one errors.Is.
	ErrMalformedPayload = combat.ErrMalformedPayload
)
