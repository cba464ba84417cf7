// Package version exposes the build version reported by the CLI and the
// health endpoint.
package version

// Current is the release version, without a "v" prefix.
const Current = "0.1.0"
