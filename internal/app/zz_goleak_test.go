// ABOUTME: Goroutine leak check for the app package
// ABOUTME: Verifies that scope teardown stops every background goroutine
package app

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
