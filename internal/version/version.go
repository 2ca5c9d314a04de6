// ABOUTME: Version and product identity constants
// ABOUTME: Shared by binaries, health endpoints and mDNS names
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "mixbus"

	// Manufacturer is reported in health output
	Manufacturer = "Sendspin"
)

// String returns "product version"
func String() string {
	return Product + " " + Version
}
