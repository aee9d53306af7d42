package app

import (
	"os"
	"sync"
)

const testModeEnv = "ATELIER_TEST_MODE"

// InTestMode reports whether ATELIER_TEST_MODE=1 was set when first asked.
// The binaries return early in that mode so package tests that import them
// never dial Redis, Postgres or the backend.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})
