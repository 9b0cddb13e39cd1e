package storage

import "errors"

// ErrNotFound is returned by lookups when no record matches.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by inserts that violate a uniqueness constraint
// (Author.name, User.username).
var ErrDuplicate = errors.New("duplicate record")
