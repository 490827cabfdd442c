package tidy

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so date bucketing and journal timestamps
// are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator produces identifiers for journals and backups.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// shortID trims an identifier to its first eight characters for file names.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
