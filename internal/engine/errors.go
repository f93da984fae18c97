package engine

import "errors"

// ErrInvalidArgument marks malformed caller input. Callers test with errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")
