// Package version exposes the build version of the metron service.
package version

// Version is the current release version. Overridden at build time via
// -ldflags "-X github.com/aristath/metron/internal/version.Version=...".
var Version = "0.3.0"
