// Package testutil provides shared test helpers for the casereview project.
// Import this in test files to avoid duplicating catalog fixtures.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Layout describes a catalog fixture: case -> phase -> slice file names.
type Layout map[string]map[string][]string

// WriteCatalog creates a catalog directory tree under a temp dir and returns
// its root. Slice files contain a few placeholder bytes.
func WriteCatalog(t *testing.T, layout Layout) string {
	t.Helper()
	root := t.TempDir()
	for caseID, phases := range layout {
		require.NoError(t, os.MkdirAll(filepath.Join(root, caseID), 0o755))
		for phaseID, slices := range phases {
			dir := filepath.Join(root, caseID, phaseID)
			require.NoError(t, os.MkdirAll(dir, 0o755), "failed to create phase %s/%s", caseID, phaseID)
			for _, name := range slices {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img:"+name), 0o644))
			}
		}
	}
	return root
}

// DefaultLayout is the scenario catalog used across packages: CASE01 with a
// three-slice non_contrast phase, plus a second case with two phases.
func DefaultLayout() Layout {
	return Layout{
		"CASE01": {
			"non_contrast": {"1.jpg", "2.jpg", "3.jpg"},
		},
		"CASE02": {
			"arterial": {"1.png", "2.png"},
			"venous":   {"1.jpeg"},
			"empty":    {},
		},
	}
}
