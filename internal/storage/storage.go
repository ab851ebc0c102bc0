// Package storage persists expenses. The SQLite repository lives here; the
// memory and postgres packages implement the same contract.
package storage

import (
	"errors"
)

// ErrNotFound is returned when an expense id does not exist.
var ErrNotFound = errors.New("expense not found")
