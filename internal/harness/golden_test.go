package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Snapshot scenarios exercise distinct rendering shapes: plain
// comparisons with boolean structure, native-vs-JSON array dialects,
// and the superset test only part of the array family can express.
var goldenScenarios = []string{"basic_comparison", "array_overlap", "array_superset"}

func TestGoldenSnapshots(t *testing.T) {
	for _, name := range goldenScenarios {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			snap, err := BuildSnapshot(s)
			require.NoError(t, err)
			AssertGolden(t, snap)
		})
	}
}
