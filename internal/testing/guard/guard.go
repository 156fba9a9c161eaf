// Package guard switches the process into test mode on import, so binaries
// exercised from tests skip their runtime startup.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SHIFTDESK_TEST_MODE") == "" {
			_ = os.Setenv("SHIFTDESK_TEST_MODE", "1")
		}
	})
}
