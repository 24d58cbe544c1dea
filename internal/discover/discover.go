// Package discover resolves a Configuration's pattern/exclude/file fields
// into a concrete, ordered file list. Glob discovery is explicitly out of
// scope for this engine's core (spec "Non-goals": "glob discovery ...
// treated as external collaborators") and has no domain-specific analogue
// in the example pack beyond stdlib path/filepath, so it stays on the
// standard library rather than reaching for a third-party glob matcher --
// see DESIGN.md.
package discover

import (
	"path/filepath"
	"sort"
)

// Files resolves patterns/excludes/explicit into a deduplicated, sorted
// file list: every pattern is expanded with filepath.Glob, anything
// matching an exclude pattern is dropped, and explicit files are appended
// verbatim (spec §6's --file).
func Files(patterns, excludes, explicit []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if excluded(m, excludes) {
				continue
			}
			add(m)
		}
	}

	for _, f := range explicit {
		add(f)
	}

	sort.Strings(out)
	return out, nil
}

func excluded(path string, excludes []string) bool {
	for _, pattern := range excludes {
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
