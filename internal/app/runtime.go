package app

import (
	"os"
	"sync"
)

const testModeEnv = "SHIFTDESK_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})

// InTestMode is true when SHIFTDESK_TEST_MODE=1 was set before the first
// call. Binaries return early from main and the router skips access logs.
func InTestMode() bool {
	return testMode()
}
