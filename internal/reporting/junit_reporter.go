package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"

	"vela/internal/pool"
	"vela/internal/runtime"
)

// JUnitFilename is the default file name used by JUnitReporter, matching
// the teacher's JUnitXMLFilename convention.
const JUnitFilename = "results.xml"

// JUnitReporter writes one <testsuite> per file to outputDir/Filename,
// built with beevik/etree rather than stdlib encoding/xml -- this is the
// engine's domain-stack home for etree, replacing the teacher's
// encoding/xml-based junit_xml.go with the pack's own XML library.
type JUnitReporter struct {
	Filename string
}

// NewJUnitReporter creates a file reporter writing to filename under
// outputDir (default results.xml).
func NewJUnitReporter(filename string) *JUnitReporter {
	if filename == "" {
		filename = JUnitFilename
	}
	return &JUnitReporter{Filename: filename}
}

func (r *JUnitReporter) Name() string { return "junit" }
func (r *JUnitReporter) Type() Type   { return TypeFile }

func (r *JUnitReporter) Report(_ context.Context, run *pool.Run, outputDir string) error {
	doc := etree.NewDocument()
	doc.Indent(2)
	suites := doc.CreateElement("testsuites")

	for _, f := range run.Files {
		res := run.Results[f]
		suite := suites.CreateElement("testsuite")
		suite.CreateAttr("name", f)

		if res.Error != nil {
			suite.CreateAttr("tests", "1")
			suite.CreateAttr("failures", "1")
			tc := suite.CreateElement("testcase")
			tc.CreateAttr("name", f)
			failure := tc.CreateElement("failure")
			failure.CreateAttr("message", res.Error.Error())
			continue
		}

		report := res.Report
		if report == nil {
			suite.CreateAttr("tests", "0")
			continue
		}
		suite.CreateAttr("tests", fmt.Sprintf("%d", report.Stats.Total))
		suite.CreateAttr("failures", fmt.Sprintf("%d", report.Stats.Failed))
		suite.CreateAttr("skipped", fmt.Sprintf("%d", report.Stats.Skipped))
		suite.CreateAttr("time", fmt.Sprintf("%.3f", res.DurationS))

		for _, t := range report.Tests {
			writeTestCase(suite, t)
		}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	doc.WriteSettings.CanonicalText = true
	return doc.WriteToFile(filepath.Join(outputDir, r.Filename))
}

func writeTestCase(suite *etree.Element, t runtime.Result) {
	tc := suite.CreateElement("testcase")
	tc.CreateAttr("name", t.Description)
	tc.CreateAttr("time", fmt.Sprintf("%.3f", t.Duration.Seconds()))

	switch t.Status {
	case runtime.StatusSkipped, runtime.StatusTodo:
		skipped := tc.CreateElement("skipped")
		skipped.CreateAttr("message", string(t.Status))
	case runtime.StatusFailed, runtime.StatusSoftfailed:
		failure := tc.CreateElement("failure")
		if t.Error != nil {
			failure.CreateAttr("message", t.Error.Message)
			if t.Error.Stack != "" {
				failure.SetText(t.Error.Stack)
			}
		}
		failure.CreateAttr("type", string(t.Status))
	}
}
