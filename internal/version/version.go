// ABOUTME: Version information for resonate-scope
// ABOUTME: Reported in logs, the feed handshake and the CLI
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "resonate-scope"

	// Manufacturer is the project name
	Manufacturer = "Resonate"
)
