package bus

import "errors"

var (
	ErrNilHandler  = errors.New("nil event handler")
	ErrPayloadType = errors.New("unexpected event payload type")
)
