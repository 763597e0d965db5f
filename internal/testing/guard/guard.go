// Package guard flips the runtime into test mode as a side effect of being
// imported, so binaries whose main is linked into a test run skip startup.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("KASIRA_TEST_MODE") == "" {
			_ = os.Setenv("KASIRA_TEST_MODE", "1")
		}
	})
}
