// Package contract validates recorded pet store responses against the harness schemas
// and replays them through the scenario runner without network access. Set
// PETSTORE_LIVE_URL to also run the built-in suites against a live deployment.
//
// Run with: go test -tags=contract ./tests/contract/...
package contract
