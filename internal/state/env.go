package state

import (
	"time"

	"github.com/google/uuid"
)

// Env supplies the non-deterministic inputs of Apply
type Env struct {
	Now   func() time.Time
	NewID func(prefix string) string
}

// DefaultEnv returns an Env backed by the wall clock and random UUIDs.
// Timestamps are UTC with millisecond precision so they survive a JSON round trip unchanged.
func DefaultEnv() Env {
	return Env{
		Now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
		NewID: func(prefix string) string {
			return prefix + "-" + uuid.NewString()
		},
	}
}
