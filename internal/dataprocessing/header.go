package dataprocessing

import (
	"fmt"
	"strings"

	"custos/pkg/contracts/domain"
)

// AreaSeparator joins area and sub-id in a data column name
const AreaSeparator = " - "

// IngestOptions tunes how strictly a grid is accepted
type IngestOptions struct {
	// RequireRowID rejects grids without an ID column. When false, rows get
	// their 1-based spreadsheet row number as id.
	RequireRowID bool
}

// DefaultIngestOptions accepts grids without an ID column
func DefaultIngestOptions() IngestOptions {
	return IngestOptions{}
}

// ReconcileHeader flattens the two header rows of grid into a column schema.
//
// The area row is forward-filled left to right, leading blanks stay blank. The
// id row decides reserved columns: "ID" and "CONTA" match exactly. Any other
// column is named "{area} - {id}", or by whichever of the two is present, or
// "Column_{i+1}" when both are blank. Names repeated by the header get a
// " (n)" suffix so every data column has a distinct key.
func ReconcileHeader(grid domain.Grid, opts IngestOptions) (domain.Schema, error) {
	if len(grid) < 2 {
		return domain.Schema{}, &SchemaError{Reason: ErrTooFewRows, Detail: fmt.Sprintf("got %d rows", len(grid))}
	}

	// Data cells past the header still land in a placeholder column.
	width := grid.Width()
	columns := make([]domain.Column, 0, width)
	seen := make(map[string]int, width)

	var area string
	for i := 0; i < width; i++ {
		rawArea := grid.Cell(0, i).String()
		if rawArea != "" {
			area = rawArea
		}
		subID := grid.Cell(1, i).String()

		col := domain.Column{Index: i, Area: area, RawArea: rawArea, SubID: subID}
		switch subID {
		case domain.TokenRowID:
			col.Kind = domain.ColumnRowID
			col.Name = domain.TokenRowID
		case domain.TokenAccount:
			col.Kind = domain.ColumnAccount
			col.Name = domain.TokenAccount
		default:
			col.Kind = domain.ColumnData
			col.Name = uniqueName(columnName(area, subID, i), seen)
		}
		columns = append(columns, col)
	}

	schema := domain.Schema{Columns: columns}
	if schema.IndexOf(domain.ColumnAccount) < 0 {
		return domain.Schema{}, &SchemaError{Reason: ErrMissingAccountColumn}
	}
	if opts.RequireRowID && !schema.HasRowID() {
		return domain.Schema{}, &SchemaError{Reason: ErrMissingRowIDColumn}
	}
	return schema, nil
}

func columnName(area, subID string, i int) string {
	switch {
	case area != "" && subID != "":
		return area + AreaSeparator + subID
	case area != "":
		return area
	case subID != "":
		return subID
	default:
		return fmt.Sprintf("Column_%d", i+1)
	}
}

func uniqueName(name string, seen map[string]int) string {
	seen[name]++
	if seen[name] == 1 {
		return name
	}
	for {
		candidate := fmt.Sprintf("%s (%d)", name, seen[name])
		if _, taken := seen[candidate]; !taken {
			seen[candidate] = 1
			return candidate
		}
		seen[name]++
	}
}

// AreaOf returns the area a data column aggregates under: the name up to its
// last separator, or the whole name when it has none.
func AreaOf(name string) string {
	if i := strings.LastIndex(name, AreaSeparator); i >= 0 {
		return name[:i]
	}
	return name
}
