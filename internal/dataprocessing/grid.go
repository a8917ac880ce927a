package dataprocessing

import (
	"custos/pkg/contracts/domain"
)

// ExportGrid rebuilds a two-row-header grid from ds. The area row carries the
// labels exactly as read, before forward-fill, so ingesting the result again
// reproduces the same schema and values.
func ExportGrid(ds *domain.Dataset) domain.Grid {
	cols := ds.Schema.Columns
	grid := make(domain.Grid, 0, len(ds.Rows)+2)

	areaRow := make([]domain.Cell, len(cols))
	idRow := make([]domain.Cell, len(cols))
	for i, col := range cols {
		areaRow[i] = domain.Text(col.RawArea)
		idRow[i] = domain.Text(col.SubID)
	}
	grid = append(grid, areaRow, idRow)

	for _, row := range ds.Rows {
		cells := make([]domain.Cell, len(cols))
		for i, col := range cols {
			switch col.Kind {
			case domain.ColumnRowID:
				cells[i] = domain.Text(row.RowID)
			case domain.ColumnAccount:
				cells[i] = domain.Text(row.Account)
			default:
				cells[i] = domain.Number(row.Values[col.Name])
			}
		}
		grid = append(grid, cells)
	}
	return grid
}
