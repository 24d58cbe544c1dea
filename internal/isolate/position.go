package isolate

import (
	"regexp"
	"strconv"

	"vela/internal/runtime"
	"vela/internal/sourcemap"
)

// positionPrefix matches the "<line>:<col>: message" shape yaegi itself
// uses for its own compile diagnostics (the same format evalEntrypoint's
// BuildError already carries). A test or hook body that panics or returns
// an error formatted the same way lets annotateSourcePositions recover the
// generated position the failure occurred at; it is not anchored to the
// start of the string since runtime.tagEntryError prefixes the cause with
// "execution error: " / `hook "desc" failed: ` before it reaches here.
var positionPrefix = regexp.MustCompile(`(\d+):(\d+):\s*(.*)$`)

// mapErrorPosition extracts a "line:col: message" prefix from msg and
// resolves it through smap (spec §4.1: "Source map must be queryable as
// (generated_line, column) -> {source, line, column, name}"), returning the
// original file, line and column the generated position maps to. ok is
// false if msg carries no position prefix, smap is nil, or smap has no
// covering mapping.
func mapErrorPosition(msg string, smap *sourcemap.SourceMap) (source string, line, col int, ok bool) {
	if smap == nil {
		return "", 0, 0, false
	}
	m := positionPrefix.FindStringSubmatch(msg)
	if m == nil {
		return "", 0, 0, false
	}
	genLine, err1 := strconv.Atoi(m[1])
	genCol, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return "", 0, 0, false
	}
	mapping, found := smap.Lookup(genLine, genCol)
	if !found {
		return "", 0, 0, false
	}
	return mapping.Source, mapping.Original.Line, mapping.Original.Column, true
}

// annotateSourcePositions fills in every failed test/hook Result's
// original-source position by mapping its error message through smap, per
// spec §7 ("ExecutionError ... mapped through the file's source map for
// reporting") and spec §1's "per-file report aggregator including
// source-mapped error diagnostics". Results whose error carries no
// position prefix, or a nil smap, are left untouched.
func annotateSourcePositions(report *runtime.TestReport, smap *sourcemap.SourceMap) {
	if report == nil || smap == nil {
		return
	}
	for i := range report.Tests {
		annotateResult(&report.Tests[i], smap)
	}
	for i := range report.Hooks {
		annotateResult(&report.Hooks[i], smap)
	}
}

func annotateResult(r *runtime.Result, smap *sourcemap.SourceMap) {
	if r.Error == nil {
		return
	}
	source, line, col, ok := mapErrorPosition(r.Error.Message, smap)
	if !ok {
		return
	}
	r.Error.Source = source
	r.Error.Line = line
	r.Error.Column = col
}
