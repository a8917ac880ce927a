package dataprocessing

import (
	"strconv"
	"strings"

	"custos/pkg/contracts/domain"
)

// excludedAccountMarker flags subtotal lines in the source sheet
const excludedAccountMarker = "total"

// Ingest reconciles the header of grid and normalizes its data rows using the
// default options.
func Ingest(grid domain.Grid) (*domain.Dataset, error) {
	return IngestWithOptions(grid, DefaultIngestOptions())
}

// IngestWithOptions turns a raw grid into a dataset. It is all-or-nothing:
// on error no dataset is returned.
func IngestWithOptions(grid domain.Grid, opts IngestOptions) (*domain.Dataset, error) {
	if len(grid) < 3 {
		return nil, &SchemaError{Reason: ErrTooFewRows, Detail: strconv.Itoa(len(grid)) + " rows"}
	}

	schema, err := ReconcileHeader(grid, opts)
	if err != nil {
		return nil, err
	}

	rows, err := NormalizeRows(grid, schema)
	if err != nil {
		return nil, err
	}
	return &domain.Dataset{Schema: schema, Rows: rows}, nil
}

// NormalizeRows maps every data row of grid onto schema. Blank rows and rows
// whose account mentions "total" in any case are dropped; the rest keep their
// source order.
func NormalizeRows(grid domain.Grid, schema domain.Schema) ([]domain.ExpenseRow, error) {
	accountIdx := schema.IndexOf(domain.ColumnAccount)
	rowIDIdx := schema.IndexOf(domain.ColumnRowID)
	dataCols := schema.DataColumns()

	var rows []domain.ExpenseRow
	for r := 2; r < len(grid); r++ {
		if isBlankRow(grid[r]) {
			continue
		}

		account := grid.Cell(r, accountIdx).String()
		if IsExcludedAccount(account) {
			continue
		}

		rowID := strconv.Itoa(r + 1)
		if rowIDIdx >= 0 {
			rowID = grid.Cell(r, rowIDIdx).String()
		}

		values := make(map[string]float64, len(dataCols))
		for _, col := range dataCols {
			values[col.Name] = CoerceCell(grid.Cell(r, col.Index))
		}

		rows = append(rows, domain.ExpenseRow{
			RowID:     rowID,
			Account:   account,
			Values:    values,
			RowTotal:  SumValues(schema, values),
			SourceRow: r + 1,
		})
	}

	if len(rows) == 0 {
		return nil, &ValidationError{Reason: ErrNoDataRows}
	}
	return rows, nil
}

// IsExcludedAccount reports whether an account label marks a subtotal line
func IsExcludedAccount(account string) bool {
	return strings.Contains(strings.ToLower(account), excludedAccountMarker)
}

// SumValues adds a row's values in schema order so totals are reproducible.
// Keys outside the schema are ignored.
func SumValues(schema domain.Schema, values map[string]float64) float64 {
	var total float64
	for _, col := range schema.Columns {
		if col.IsReserved() {
			continue
		}
		total += values[col.Name]
	}
	return normalizeZero(total)
}

// DuplicateRowIDs lists row ids that appear more than once within the same
// account, in first-seen order.
func DuplicateRowIDs(ds *domain.Dataset) []string {
	seen := make(map[domain.RowRef]int, len(ds.Rows))
	var dups []string
	for _, row := range ds.Rows {
		ref := domain.RowRef{RowID: row.RowID, Account: row.Account}
		seen[ref]++
		if seen[ref] == 2 {
			dups = append(dups, row.RowID)
		}
	}
	return dups
}

func isBlankRow(row []domain.Cell) bool {
	for _, c := range row {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

func normalizeZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}
