//go:build contract

package contract

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// goldenDir holds recorded pet store response bodies.
var goldenDir = filepath.Join("testdata", "petstore")

// loadGoldenFileRaw reads a recorded body and fails the test unless it is well-formed
// JSON, so a schema failure always points at the contract and not at the fixture.
func loadGoldenFileRaw(t *testing.T, name string) []byte {
	t.Helper()

	path := filepath.Join(goldenDir, filepath.Base(name))
	data, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read golden file %s", path)
	require.True(t, json.Valid(data), "golden file %s is not valid JSON", path)

	return data
}
