package activity

import "errors"

// ErrNoSource indicates the timeline was requested without a primary source.
var ErrNoSource = errors.New("no primary source")
