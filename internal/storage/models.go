package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DefaultSession is the name of the session the CLI signs in with.
const DefaultSession = "default"

// SnapshotInfo describes the stored job snapshot.
type SnapshotInfo struct {
	Count   int
	SavedAt time.Time
}
