package thread

import "errors"

// Thread errors.
var (
	ErrThreadNotFound = errors.New("thread not found")
)
