package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv, when truthy, makes the binaries exit before dialing PostgreSQL or Redis.
const TestModeEnv = "STOCKLEDGER_TEST_MODE"

var (
	testModeMu     sync.RWMutex
	testModeCached *bool
)

// InTestMode reports whether the binaries should skip runtime side effects.
func InTestMode() bool {
	testModeMu.RLock()
	cached := testModeCached
	testModeMu.RUnlock()
	if cached != nil {
		return *cached
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads TestModeEnv and returns the new value.
func RefreshTestMode() bool {
	enabled, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	if err != nil {
		enabled = false
	}
	testModeMu.Lock()
	testModeCached = &enabled
	testModeMu.Unlock()
	return enabled
}
