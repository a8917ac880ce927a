package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"custos/pkg/contracts/domain"
)

// SheetName is the single sheet of a rebuilt workbook
const SheetName = "Planilha Reconstruída"

// headerRows is the number of leading grid rows styled as header
const headerRows = 2

// ExportFileName returns the download name for an analysis, dropping a
// spreadsheet extension already present in name.
func ExportFileName(name string) string {
	base := strings.TrimSpace(name)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".xlsx", ".xls":
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if base == "" {
		base = "planilha"
	}
	return base + "_reconstruido.xlsx"
}

// WorkbookWriter renders grids as xlsx workbooks
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger.With(slog.String("component", "workbook_writer"))}
}

// Write renders grid on a single sheet and streams the workbook to w. The
// two header rows are bold, centred and shaded.
func (ww *WorkbookWriter) Write(w io.Writer, grid domain.Grid) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#D9D9D9"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "#000000", Style: 1},
			{Type: "right", Color: "#000000", Style: 1},
			{Type: "top", Color: "#000000", Style: 1},
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, row := range grid {
		values := make([]interface{}, len(row))
		for j, cell := range row {
			switch cell.Kind {
			case domain.CellNumber:
				values[j] = cell.Number
			case domain.CellText:
				values[j] = cell.Text
			default:
				values[j] = nil
			}
		}
		start, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	width := grid.Width()
	if width > 0 && len(grid) > 0 {
		last, err := excelize.CoordinatesToCellName(width, min(headerRows, len(grid)))
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
		lastCol, err := excelize.ColumnNumberToName(width)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, "A", lastCol, 18); err != nil {
			return fmt.Errorf("failed to size columns: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	ww.logger.Debug("Workbook written",
		slog.Int("rows", len(grid)),
		slog.Int("columns", width))
	return nil
}
