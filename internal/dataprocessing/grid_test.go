package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/pkg/contracts/domain"
)

func TestExportGridHeaderRows(t *testing.T) {
	ds := sampleDataset(t)
	grid := ExportGrid(ds)

	require.Len(t, grid, 2+len(ds.Rows))
	assert.Equal(t, []string{"", "", "Pessoal", "", "Frota", "Obras"}, rowText(grid[0]))
	assert.Equal(t, []string{"ID", "CONTA", "Salário", "Bônus", "Diesel", "Cimento"}, rowText(grid[1]))
	assert.Equal(t, []string{"1", "Vendas", "100", "50", "0", "0"}, rowText(grid[2]))
	assert.Equal(t, domain.CellNumber, grid[2][2].Kind)
}

func TestExportGridRoundTrip(t *testing.T) {
	grids := map[string]domain.Grid{
		"worked example": pessoalGrid([]string{"Vendas", "100", "50"}),
		"with id and placeholders": domain.TextGrid(
			[]string{"", "", "Pessoal", "", "", "Frota"},
			[]string{"ID", "CONTA", "Salário", "Salário", "", ""},
			[]string{"10", "Vendas", "1,5", "2", "3", "4"},
			[]string{"11", "TOTAL", "9", "9", "9", "9"},
			[]string{"12", "Compras", "", "x", "-1", "0,25"},
		),
		"id only header": domain.TextGrid(
			[]string{"", "", ""},
			[]string{"CONTA", "Diversos", "Outros"},
			[]string{"a", "1", "2"},
		),
	}

	for name, grid := range grids {
		t.Run(name, func(t *testing.T) {
			ds, err := Ingest(grid)
			require.NoError(t, err)

			exported := ExportGrid(ds)
			again, err := Ingest(exported)
			require.NoError(t, err)

			assert.Equal(t, ds.Schema, again.Schema)
			require.Len(t, again.Rows, len(ds.Rows))
			for i := range ds.Rows {
				assert.Equal(t, ds.Rows[i].Account, again.Rows[i].Account)
				assert.Equal(t, ds.Rows[i].Values, again.Rows[i].Values)
				assert.Equal(t, ds.Rows[i].RowTotal, again.Rows[i].RowTotal)
				if ds.Schema.HasRowID() {
					assert.Equal(t, ds.Rows[i].RowID, again.Rows[i].RowID)
				}
			}
		})
	}
}

func rowText(cells []domain.Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.String()
	}
	return out
}
