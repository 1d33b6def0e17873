package store

import "errors"

// ErrNotFound is returned when a record does not exist or the caller is not
// allowed to touch it. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique index rejects a write.
var ErrDuplicate = errors.New("duplicate")
