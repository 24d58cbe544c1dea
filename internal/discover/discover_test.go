package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/testsupport"
)

func TestFiles_PatternMatchesAndSorts(t *testing.T) {
	dir := testsupport.TempDir(t)
	require.NoError(t, testsupport.WriteFiles(dir, map[string]string{
		"b_test.go": "package main",
		"a_test.go": "package main",
		"c_skip.go": "package main",
	}))

	files, err := Files([]string{dir + "/*_test.go"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{dir + "/a_test.go", dir + "/b_test.go"}, files)
}

func TestFiles_ExcludeFiltersMatches(t *testing.T) {
	dir := testsupport.TempDir(t)
	require.NoError(t, testsupport.WriteFiles(dir, map[string]string{
		"keep_test.go": "package main",
		"drop_test.go": "package main",
	}))

	files, err := Files([]string{dir + "/*_test.go"}, []string{dir + "/drop_test.go"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{dir + "/keep_test.go"}, files)
}

func TestFiles_ExplicitFilesAreAppendedAndDeduped(t *testing.T) {
	dir := testsupport.TempDir(t)
	require.NoError(t, testsupport.WriteFiles(dir, map[string]string{
		"only_test.go": "package main",
	}))

	files, err := Files([]string{dir + "/*_test.go"}, nil, []string{dir + "/only_test.go", dir + "/extra.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{dir + "/extra.go", dir + "/only_test.go"}, files)
}

func TestFiles_NoMatchesReturnsEmpty(t *testing.T) {
	files, err := Files([]string{"/nonexistent/dir/*_test.go"}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}
