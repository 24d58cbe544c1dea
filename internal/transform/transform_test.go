package transform

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/testsupport"
)

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, testsupport.WriteFiles(dir, map[string]string{name: content}))
	return filepath.Join(dir, name)
}

func TestTransform_BareSnippetGetsPreamble(t *testing.T) {
	dir := testsupport.TempDir(t)
	path := writeScript(t, dir, "case.go", `func Describe(t *tc.TestCase) {
	t.It("passes", func(ctx context.Context) error { return nil })
}
`)

	tr := New()
	script, smap, err := tr.Transform(path)
	require.NoError(t, err)
	assert.Contains(t, script.Code, "package main")
	assert.Contains(t, script.Code, "func Describe")
	assert.True(t, smap.Len() > 0)
}

func TestTransform_FileWithPackageClauseIsUsedVerbatim(t *testing.T) {
	dir := testsupport.TempDir(t)
	content := `package main

func Describe(t *tc.TestCase) {}
`
	path := writeScript(t, dir, "case.go", content)

	tr := New()
	script, _, err := tr.Transform(path)
	require.NoError(t, err)
	assert.Equal(t, content, script.Code)
}

func TestTransform_MalformedSourceReturnsBuildError(t *testing.T) {
	dir := testsupport.TempDir(t)
	path := writeScript(t, dir, "broken.go", `func Describe(t *tc.TestCase {
`)

	tr := New()
	_, _, err := tr.Transform(path)
	require.Error(t, err)
}

func TestTransform_MissingFileReturnsLoadError(t *testing.T) {
	tr := New()
	_, _, err := tr.Transform("/nonexistent/path/case.go")
	require.Error(t, err)
}

func TestTransform_CachesByModTime(t *testing.T) {
	dir := testsupport.TempDir(t)
	path := writeScript(t, dir, "case.go", `package main

func Describe(t *tc.TestCase) {}
`)

	tr := New()
	first, _, err := tr.Transform(path)
	require.NoError(t, err)

	// A second call with the file untouched (same mtime) should hit the
	// cache and return the exact same *Script value.
	second, _, err := tr.Transform(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestTransform_CacheMissAfterContentAndModTimeChange(t *testing.T) {
	dir := testsupport.TempDir(t)
	path := writeScript(t, dir, "case.go", `package main

func Describe(t *tc.TestCase) {}
`)

	tr := New()
	first, _, err := tr.Transform(path)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	writeScript(t, dir, "case.go", `package main

func Describe(t *tc.TestCase) {
	t.It("new", func(ctx context.Context) error { return nil })
}
`)

	second, _, err := tr.Transform(path)
	require.NoError(t, err)
	assert.NotEqual(t, first.Code, second.Code)
}
