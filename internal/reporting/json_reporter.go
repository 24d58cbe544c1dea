package reporting

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"vela/internal/pool"
)

// JSONReporter writes the full Run as a single JSON document under
// outputDir. JSON has no third-party marshaler in the example pack's stack
// (shibukawa-snapsql and the rest serialize config/results with stdlib
// encoding/json too), so this reporter is one of the engine's documented
// stdlib exceptions — see DESIGN.md.
type JSONReporter struct {
	Filename string
}

// NewJSONReporter creates a file reporter writing to filename under
// outputDir (default "results.json").
func NewJSONReporter(filename string) *JSONReporter {
	if filename == "" {
		filename = "results.json"
	}
	return &JSONReporter{Filename: filename}
}

func (r *JSONReporter) Name() string { return "json" }
func (r *JSONReporter) Type() Type   { return TypeFile }

type jsonDoc struct {
	ExitCode int                          `json:"exit_code"`
	Files    []string                     `json:"files"`
	Results  map[string]jsonResultPayload `json:"results"`
}

type jsonResultPayload struct {
	Report    interface{} `json:"report"`
	Error     string      `json:"error,omitempty"`
	DurationS float64     `json:"duration_s"`
}

func (r *JSONReporter) Report(_ context.Context, run *pool.Run, outputDir string) error {
	doc := jsonDoc{
		ExitCode: run.ExitCode,
		Files:    run.Files,
		Results:  make(map[string]jsonResultPayload, len(run.Results)),
	}
	for f, res := range run.Results {
		payload := jsonResultPayload{Report: res.Report, DurationS: res.DurationS}
		if res.Error != nil {
			payload.Error = res.Error.Error()
		}
		doc.Results[f] = payload
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, r.Filename), data, 0o644)
}
