// Package transform implements the engine's Transformer (spec §4.1): it
// turns a file path into executable source code plus a source-map index,
// caching the result per (path, mtime) like the teacher caches downloaded
// external data per file identity.
//
// Scripts in this engine are Go source interpreted by the Isolator's
// embedded yaegi interpreter (see internal/isolate); Transform's job is to
// make sure that source parses cleanly, wrap it with the preamble the
// Isolator's DSL import needs, and record where every top-level
// declaration in the generated code came from in the original file, so a
// panic at a generated position can be reported against the line the test
// author actually wrote.
package transform

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"vela/errors"
	"vela/internal/sourcemap"
)

// Script is an opaque compiled unit bound to a file name (spec §3).
type Script struct {
	Path string
	Code string
}

// preamble is prepended to every file that does not already declare a
// package clause, so bare test-script snippets are valid Go source without
// test authors having to write boilerplate.
const preamble = `package main

import (
	"context"

	tc "vela/testcase"
)

var _ = context.Background
var _ = tc.DefaultOptions
`

var preambleLines = strings.Count(preamble, "\n")

type cacheEntry struct {
	mtime  time.Time
	script *Script
	smap   *sourcemap.SourceMap
}

// Transformer converts file paths into Scripts, caching per (path, mtime)
// as spec §4.1 recommends.
type Transformer struct {
	mu     sync.Mutex
	cache  map[string]cacheEntry
	parser *sitter.Parser
}

// New creates a Transformer with its own tree-sitter parser instance.
// Tree-sitter parsers aren't reentrant, so build holds the Transformer's
// mutex around each parse; that makes concurrent Transform calls safe, as
// the Pool makes them from its per-file goroutines. Two concurrent calls for
// the same uncached path may each build it.
func New() *Transformer {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &Transformer{cache: make(map[string]cacheEntry), parser: p}
}

// Transform returns {code, source_map} for path, per spec §4.1.
func (t *Transformer) Transform(path string) (*Script, *sourcemap.SourceMap, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, errors.NewLoadError(err, path)
	}

	t.mu.Lock()
	if e, ok := t.cache[path]; ok && e.mtime.Equal(info.ModTime()) {
		t.mu.Unlock()
		return e.script, e.smap, nil
	}
	t.mu.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.NewLoadError(err, path)
	}

	script, smap, err := t.build(path, content)
	if err != nil {
		return nil, nil, err
	}

	t.mu.Lock()
	t.cache[path] = cacheEntry{mtime: info.ModTime(), script: script, smap: smap}
	t.mu.Unlock()

	return script, smap, nil
}

func (t *Transformer) build(path string, content []byte) (*Script, *sourcemap.SourceMap, error) {
	t.mu.Lock()
	tree, err := t.parser.ParseCtx(nil, nil, content)
	t.mu.Unlock()
	if err != nil {
		return nil, nil, errors.NewBuildError(path, "parse failed", []string{err.Error()})
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, nil, errors.NewBuildError(path, "syntax error", []string{firstErrorSnippet(root, content)})
	}

	hasPackageClause := root.ChildCount() > 0 && root.Child(0).Type() == "package_clause"

	var code string
	shift := 0
	if hasPackageClause {
		code = string(content)
	} else {
		code = preamble + string(content)
		shift = preambleLines
	}

	smap := sourcemap.New(path + ".gen")
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		startPoint := child.StartPoint()
		name := child.Type()
		smap.Add(sourcemap.Mapping{
			Generated: sourcemap.Position{Line: int(startPoint.Row) + 1 + shift, Column: int(startPoint.Column) + 1},
			Source:    path,
			Original:  sourcemap.Position{Line: int(startPoint.Row) + 1, Column: int(startPoint.Column) + 1},
			Name:      name,
		})
	}

	return &Script{Path: path, Code: code}, smap, nil
}

func firstErrorSnippet(root *sitter.Node, content []byte) string {
	var walk func(n *sitter.Node) string
	walk = func(n *sitter.Node) string {
		if n.IsError() {
			start := n.StartByte()
			end := n.EndByte()
			if end > uint32(len(content)) {
				end = uint32(len(content))
			}
			return fmt.Sprintf("near byte %d: %q", start, string(content[start:end]))
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if s := walk(n.Child(i)); s != "" {
				return s
			}
		}
		return ""
	}
	if s := walk(root); s != "" {
		return s
	}
	return "unknown parse error"
}
