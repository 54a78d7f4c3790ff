// Package version holds the release version reported by the CLI and /health.
package version

// Current is bumped on release. No "v" prefix.
const Current = "0.1.0"
