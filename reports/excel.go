// Package reports renders snapshot exports.
package reports

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"cacao-server/entities"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Measurements"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Columns returns the header row: date, the canonical measurement types in
// report order, then any other type present in snapshots, sorted.
func Columns(snapshots []entities.Snapshot) []string {
	canonical := entities.MeasurementTypes()
	known := make(map[string]bool, len(canonical))
	for _, t := range canonical {
		known[t] = true
	}
	extra := map[string]bool{}
	for _, s := range snapshots {
		for t := range s.Values {
			if !known[t] {
				extra[t] = true
			}
		}
	}
	extras := make([]string, 0, len(extra))
	for t := range extra {
		extras = append(extras, t)
	}
	sort.Strings(extras)

	cols := append([]string{"date"}, canonical...)
	return append(cols, extras...)
}

// SnapshotWorkbook writes one row per snapshot, in the given order, and
// returns the encoded .xlsx file. Missing values stay blank.
func SnapshotWorkbook(title string, snapshots []entities.Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(SheetName); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: title, Created: time.Now().UTC().Format(time.RFC3339)}); err != nil {
			return nil, fmt.Errorf("failed to set document properties: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	cols := Columns(snapshots)
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "A", 22); err != nil {
		return nil, err
	}

	for i, s := range snapshots {
		row := make([]any, len(cols))
		row[0] = s.Date.UTC().Format(time.RFC3339)
		for j, c := range cols[1:] {
			if v, ok := s.Values[c]; ok {
				row[j+1] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
