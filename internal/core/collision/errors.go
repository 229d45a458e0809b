package collision

import "errors"

var ErrInvalidCellSize = errors.New("spatial hash cell size must be positive and finite")
