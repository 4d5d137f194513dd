// ABOUTME: Tests for version constants
// ABOUTME: Checks the release version shape and the product identity
package version

import (
	"regexp"
	"strings"
	"testing"
)

func TestVersionIsSemver(t *testing.T) {
	if !regexp.MustCompile(`^\d+\.\d+\.\d+$`).MatchString(Version) {
		t.Errorf("expected MAJOR.MINOR.PATCH, got %q", Version)
	}
}

func TestProductIdentity(t *testing.T) {
	if Product != "resonate-scope" {
		t.Errorf("expected product resonate-scope, got %q", Product)
	}
	// used as an mDNS instance name, which may not contain dots
	if strings.Contains(Product, ".") {
		t.Errorf("product %q must not contain dots", Product)
	}
	if Manufacturer == "" {
		t.Error("expected a manufacturer")
	}
}
