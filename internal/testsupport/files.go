// Package testsupport provides file-fixture helpers shared by this
// engine's package tests, adapted from the teacher's testutil package:
// same TempDir/WriteFiles/ReadFiles shape, modernized onto os.ReadFile/
// os.WriteFile/os.MkdirTemp instead of the deprecated io/ioutil wrappers.
package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TempDir creates a temporary directory prefixed by "vela_test_[TestName]."
// and returns its path. It reports a fatal error to t if creation fails.
func TempDir(t *testing.T) string {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dir, err := os.MkdirTemp("", "vela_test_"+name+".")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

// WriteFiles creates and writes files (keys are paths relative to dir,
// values are contents) within dir.
func WriteFiles(dir string, files map[string]string) error {
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// ReadFiles reads all regular files under dir and returns their paths
// relative to dir alongside their contents.
func ReadFiles(dir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[p[len(dir)+1:]] = string(b)
		return nil
	})
	return files, err
}
