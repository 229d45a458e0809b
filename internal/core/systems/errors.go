package systems

import "errors"

var (
	ErrSchedulerSealed   = errors.New("scheduler is sealed")
	ErrDuplicateSystem   = errors.New("system already registered")
	ErrSystemNotFound    = errors.New("system not found")
	ErrNilSystem         = errors.New("nil system")
	ErrSchedulerNotReady = errors.New("scheduler is not sealed")
)
