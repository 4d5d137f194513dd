// ABOUTME: Goroutine leak check for the graph package
// ABOUTME: Fails the package run if render goroutines outlive the tests
package graph

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
