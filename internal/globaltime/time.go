// Package globaltime is the process clock. Production code reads it through
// UTC so tests can freeze time for deterministic ids and timestamps.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu     sync.RWMutex
	frozen *time.Time
)

// Now returns the wall-clock time, or the frozen instant when a test has
// pinned one.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	if frozen != nil {
		return *frozen
	}
	return time.Now()
}

// UTC is Now in UTC. Stored timestamps and generated article ids go through
// it.
func UTC() time.Time {
	return Now().UTC()
}

// SetMockTime freezes the clock at t until ResetTime is called.
func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	frozen = &t
}

// ResetTime unfreezes the clock.
func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	frozen = nil
}
