package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/fitcheck/internal/pipeline"
)

const (
	SummarySheet      = "Summary"
	RequirementsSheet = "Requirements"
	GapsSheet         = "Gaps"
)

var (
	requirementHeaders = []string{"ID", "Category", "Description", "Importance", "Confidence", "Level", "Status", "Quotes"}
	gapHeaders         = []string{"Priority", "ID", "Category", "Description", "Importance", "Reason"}
)

// SaveXLSX writes a workbook with a summary, every requirement and the
// prioritized gaps. The .xlsx extension is added when missing.
func SaveXLSX(path string, res pipeline.AnalysisResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	for _, name := range []string{RequirementsSheet, GapsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	if err := summarySheet(f, res); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := requirementsSheet(f, res, header); err != nil {
		return fmt.Errorf("requirements sheet: %w", err)
	}
	if err := gapsSheet(f, res, header); err != nil {
		return fmt.Errorf("gaps sheet: %w", err)
	}

	return f.SaveAs(filepath.Clean(path))
}

func summarySheet(f *excelize.File, res pipeline.AnalysisResult) error {
	rows := [][]any{
		{"Total", res.Score.Total},
		{"Must", res.Score.Must},
		{"Want", res.Score.Want},
		{"Summary", res.Score.Summary},
		{"Requirements", len(res.Requirements)},
		{"Matched", len(res.Score.Matched)},
		{"Gaps", len(res.Score.Gaps)},
		{"Run", res.Meta.RunID},
		{"Model", res.Meta.Model},
		{"Embeddings", res.Meta.EmbeddingProvider},
	}
	for _, w := range res.Warnings {
		rows = append(rows, []any{"Warning", w})
	}

	if err := f.SetColWidth(SummarySheet, "A", "A", 16); err != nil {
		return err
	}
	if err := f.SetColWidth(SummarySheet, "B", "B", 80); err != nil {
		return err
	}
	return writeRows(f, SummarySheet, 1, rows)
}

func requirementsSheet(f *excelize.File, res pipeline.AnalysisResult, header int) error {
	if err := writeHeader(f, RequirementsSheet, requirementHeaders, header); err != nil {
		return err
	}

	rows := make([][]any, 0, len(res.Requirements))
	for _, r := range res.Requirements {
		ev, _ := res.EvidenceFor(r.ID)
		rows = append(rows, []any{
			r.ID,
			r.Category.String(),
			r.Description,
			r.Importance,
			ev.Confidence,
			ev.Level().String(),
			status(res, r.ID),
			joinQuotes(ev),
		})
	}
	if err := f.SetColWidth(RequirementsSheet, "C", "C", 50); err != nil {
		return err
	}
	if err := f.SetColWidth(RequirementsSheet, "H", "H", 80); err != nil {
		return err
	}
	return writeRows(f, RequirementsSheet, 2, rows)
}

func gapsSheet(f *excelize.File, res pipeline.AnalysisResult, header int) error {
	if err := writeHeader(f, GapsSheet, gapHeaders, header); err != nil {
		return err
	}

	rows := make([][]any, 0, len(res.PrioritizedGaps))
	for i, g := range res.PrioritizedGaps {
		rows = append(rows, []any{
			i + 1,
			g.Requirement.ID,
			g.Requirement.Category.String(),
			g.Requirement.Description,
			g.Requirement.Importance,
			g.Evidence.Reason,
		})
	}
	if err := f.SetColWidth(GapsSheet, "D", "D", 50); err != nil {
		return err
	}
	return writeRows(f, GapsSheet, 2, rows)
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := writeRows(f, sheet, 1, [][]any{values}); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeRows(f *excelize.File, sheet string, firstRow int, rows [][]any) error {
	for i, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, firstRow+i)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}
