package testutils

import (
	"os"
	"path/filepath"
	"testing"
)

// TempTestDir returns a temp dir for a test that only gets cleaned up if the
// test does not fail.
func TempTestDir(t testing.TB, prefix string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if !t.Failed() {
			err := os.RemoveAll(dir)
			if err != nil {
				t.Logf("Unable to remove temp dir %s: %v", dir, err)
			}
		} else {
			t.Logf("Test data dir: %s", dir)
		}
	})

	return dir
}

// WriteTestFile writes data to name inside dir, creating any intermediate
// dirs, and returns the full path.
func WriteTestFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	fname := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(fname), 0o700); err != nil {
		t.Fatalf("unable to make dir for %s: %v", name, err)
	}
	if err := os.WriteFile(fname, data, 0o600); err != nil {
		t.Fatalf("unable to write %s: %v", name, err)
	}
	return fname
}
