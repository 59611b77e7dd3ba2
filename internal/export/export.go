// Package export writes ledger projections as spreadsheet handoff files.
// Cells are written exactly as projected; layout and styling are left to
// whoever opens the file.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"approval-ledger/internal/ledger"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

const defaultSheet = "Sheet1"

// ParseFormat accepts xlsx and csv, case-insensitively. Empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", ledger.ErrMalformedInput, s)
}

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileName names an export of stage taken at t, e.g. approve-queue-20240603-1030.xlsx.
func FileName(stage ledger.Stage, f Format, t time.Time) string {
	return fmt.Sprintf("%s-%s.%s", stage, t.Format("20060102-1504"), f)
}

// Write encodes p in format f.
func Write(w io.Writer, f Format, p ledger.Projection, sheet string) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, p)
	case FormatXLSX:
		return WriteXLSX(w, p, sheet)
	}
	return fmt.Errorf("%w: unknown export format %q", ledger.ErrMalformedInput, f)
}

// WriteXLSX writes the header and rows to one worksheet.
func WriteXLSX(w io.Writer, p ledger.Projection, sheet string) error {
	if sheet == "" {
		sheet = defaultSheet
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	rows := append([][]string{p.Header}, p.Rows...)
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteCSV writes the header and rows as RFC 4180 CSV.
func WriteCSV(w io.Writer, p ledger.Projection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(p.Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(p.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
