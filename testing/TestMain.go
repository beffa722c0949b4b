// Package testing puts every test binary that imports it into stockledger test mode.
//
// Test mode stops cmd/stockledger and cmd/worker from dialing PostgreSQL or Redis and
// supplies a throwaway credential list so configuration loads without a real environment.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var prepare sync.Once

var testEnv = map[string]string{
	"STOCKLEDGER_TEST_MODE": "1",
	"AUTH_USERS":            "admin:admin:admin",
	"LOG_FORMAT":            "pretty",
}

func ensureTestMode() {
	prepare.Do(func() {
		for key, value := range testEnv {
			if key != "STOCKLEDGER_TEST_MODE" && os.Getenv(key) != "" {
				continue
			}
			_ = os.Setenv(key, value)
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain lets a package delegate its TestMain here.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
