package status

import "errors"

var (
	ErrUnknownEffect     = errors.New("unknown status effect")
	ErrTargetNotAlive    = errors.New("status target is not alive")
	ErrTargetDead        = errors.New("status target is dead")
	ErrMalformedDuration = errors.New("malformed status duration")
)
