// Package integration provides integration tests that verify run history and the
// latest-run cache against real databases. These tests use testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration
