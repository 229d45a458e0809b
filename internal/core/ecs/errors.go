package ecs

import "errors"

var (
	ErrEntityNotAlive         = errors.New("entity is not alive")
	ErrComponentNotRegistered = errors.New("component type not registered")
	ErrUnknownComponentType   = errors.New("unknown component type tag")
	ErrEntityAlreadyAnnounced = errors.New("entity already announced")
	ErrNilComponent           = errors.New("nil component instance")
)
