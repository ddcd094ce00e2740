// Package e2e runs the harness end to end: the built-in suites execute against an
// in-process fake pet store while the monitor endpoints serve the results.
//
// Run with: go test -tags=e2e ./tests/e2e/...
package e2e
