// Package export writes an analysis result as JSON, Markdown or an XLSX
// workbook.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/pipeline"
)

// WriteJSON encodes the result as indented JSON.
func WriteJSON(w io.Writer, res pipeline.AnalysisResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(res)
}

// SaveJSON writes the result to path.
func SaveJSON(path string, res pipeline.AnalysisResult) error {
	return saveWith(path, res, WriteJSON)
}

// SaveMarkdown writes the Markdown report to path.
func SaveMarkdown(path string, res pipeline.AnalysisResult) error {
	return saveWith(path, res, WriteMarkdown)
}

// DumpToTmpFile writes the JSON result into a new temporary file and returns
// its name.
func DumpToTmpFile(res pipeline.AnalysisResult) (string, error) {
	file, err := os.CreateTemp("", "fitcheck_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := WriteJSON(file, res); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func saveWith(path string, res pipeline.AnalysisResult, write func(io.Writer, pipeline.AnalysisResult) error) error {
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := write(file, res); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// status is the verdict shown for a requirement.
func status(res pipeline.AnalysisResult, id string) string {
	for _, m := range res.Score.Matched {
		if m.Requirement.ID == id {
			return "Matched"
		}
	}
	return "Gap"
}

func joinQuotes(ev fit.Evidence) string {
	parts := make([]string, 0, len(ev.Quotes))
	for _, q := range ev.Quotes {
		if q.Source == fit.SourceRetrievedNote {
			parts = append(parts, fmt.Sprintf("%q (notes)", q.Text))
			continue
		}
		parts = append(parts, fmt.Sprintf("%q", q.Text))
	}
	return strings.Join(parts, "; ")
}
