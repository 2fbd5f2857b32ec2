package dispatch

import (
	"testing"

	"go.uber.org/goleak"
)

// Attach and drain goroutines must all be gone once each test's cleanup
// has detached and waited.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
