package dataprocessing

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"custos/pkg/contracts/domain"
)

// Supported spreadsheet extensions
const (
	ExtXLSX = ".xlsx"
	ExtXLS  = ".xls"
)

// IsSupportedFile reports whether filename has a readable spreadsheet extension
func IsSupportedFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtXLSX, ExtXLS:
		return true
	}
	return false
}

// ParseFile reads the first sheet of the workbook at path into a grid.
func ParseFile(path string) (domain.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return ReadGrid(f, filepath.Base(path))
}

// ReadGrid reads the first sheet of a workbook without interpreting any
// header. The format is picked from the filename extension.
func ReadGrid(r io.Reader, filename string) (domain.Grid, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtXLSX:
		return readXLSX(r)
	case ExtXLS:
		return readXLS(r)
	default:
		return nil, &ValidationError{Reason: ErrUnsupportedFormat, Detail: filename}
	}
}

func readXLSX(r io.Reader) (domain.Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ValidationError{Reason: ErrUnreadableWorkbook, Detail: err.Error()}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ValidationError{Reason: ErrUnreadableWorkbook, Detail: "workbook has no sheets"}
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	grid := make(domain.Grid, len(rows))
	for i, row := range rows {
		grid[i] = make([]domain.Cell, len(row))
		for j, value := range row {
			if strings.TrimSpace(value) == "" {
				continue
			}
			cellName, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, err
			}
			cellType, err := f.GetCellType(sheet, cellName)
			if err != nil {
				return nil, fmt.Errorf("failed to read cell %s: %w", cellName, err)
			}
			grid[i][j] = typedCell(cellType, value)
		}
	}

	slog.Debug("Read workbook sheet", slog.String("sheet_name", sheet), slog.Int("total_rows", len(grid)))
	return grid, nil
}

// typedCell keeps strings as text and turns numeric storage into numbers.
func typedCell(cellType excelize.CellType, value string) domain.Cell {
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool, excelize.CellTypeError:
		return domain.Text(value)
	}
	return parsedCell(value)
}

func parsedCell(value string) domain.Cell {
	if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return domain.Number(v)
	}
	return domain.Text(value)
}

// readXLS handles legacy BIFF workbooks. Cells arrive as strings, so anything
// that parses as a plain float becomes a number. The xls reader panics on some
// malformed files; that is reported as an error.
func readXLS(r io.Reader) (grid domain.Grid, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			grid = nil
			err = &ValidationError{Reason: ErrUnreadableWorkbook, Detail: fmt.Sprintf("malformed xls workbook: %v", rec)}
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}

	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, &ValidationError{Reason: ErrUnreadableWorkbook, Detail: err.Error()}
	}
	if book.NumSheets() == 0 {
		return nil, &ValidationError{Reason: ErrUnreadableWorkbook, Detail: "workbook has no sheets"}
	}

	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, &ValidationError{Reason: ErrUnreadableWorkbook, Detail: "workbook has no sheets"}
	}

	grid = make(domain.Grid, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]domain.Cell, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = parsedCell(row.Col(j))
		}
		grid = append(grid, cells)
	}

	slog.Debug("Read xls sheet", slog.String("sheet_name", sheet.Name), slog.Int("total_rows", len(grid)))
	return grid, nil
}
