package database

import "errors"

// ErrNotFound is returned by stores when the requested row does not exist.
// Callers translate it into their own domain errors.
var ErrNotFound = errors.New("not found")
