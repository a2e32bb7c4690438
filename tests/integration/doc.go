// Package integration runs the storage backends, the redis settings store and
// the assembled application against real databases via testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration
