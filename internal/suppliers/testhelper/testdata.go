// Package testhelper provides utilities for managing testdata files in supplier driver tests.
package testhelper

import (
	"os"
	"path/filepath"
	"testing"
)

// LoadTestdata loads a testdata file from the caller's testdata directory.
func LoadTestdata(t *testing.T, filename string) []byte {
	t.Helper()

	testdataPath := filepath.Join("testdata", filename)

	data, err := os.ReadFile(testdataPath) //nolint:gosec // Test file paths are controlled
	if err != nil {
		t.Fatalf("Failed to load testdata file %s: %v", testdataPath, err)
	}

	return data
}

// Path returns the absolute path of a testdata file.
func Path(t *testing.T, filename string) string {
	t.Helper()

	p, err := filepath.Abs(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatalf("Failed to resolve testdata file %s: %v", filename, err)
	}
	return p
}
