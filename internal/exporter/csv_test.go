package exporter

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/pkg/contracts/domain"
)

func sampleViews() domain.Views {
	return domain.Views{
		GrandTotal: 500,
		Areas: []domain.AreaAggregate{
			{Area: "Pessoal", Total: 400, Percent: 80},
			{Area: "Frota", Total: 100, Percent: 20},
			{Area: "Obras"},
		},
		ZeroAreas: []domain.AreaAggregate{{Area: "Obras"}},
		Accounts: []domain.AccountAggregate{
			{
				Account:   "Compras",
				RowIDs:    []string{"2"},
				Total:     300,
				Percent:   60,
				Breakdown: map[string]float64{"Pessoal": 200, "Frota": 100},
			},
		},
		Columns: []domain.ColumnAggregate{
			{Column: "Pessoal - Salário", Area: "Pessoal", Total: 330, Percent: 66},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		name    string
		options WriteOptions
		want    string
	}{
		{
			name:    "headers and records",
			options: WriteOptions{Headers: []string{"a", "b"}, Records: [][]string{{"1", "2"}}},
			want:    "a,b\n1,2\n",
		},
		{
			name:    "quotes special characters",
			options: WriteOptions{Records: [][]string{{"x, y", `say "hi"`}}},
			want:    "\"x, y\",\"say \"\"hi\"\"\"\n",
		},
		{
			name:    "bom prefix",
			options: WriteOptions{Headers: []string{"a"}, BOMPrefix: true},
			want:    "\xEF\xBB\xBFa\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, tt.options))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestViewOptions(t *testing.T) {
	views := sampleViews()

	tests := []struct {
		view      string
		wantHead  []string
		wantFirst []string
		wantRows  int
	}{
		{ViewAreas, []string{"area", "total", "percent"}, []string{"Pessoal", "400.00", "80.00"}, 3},
		{ViewZeroAreas, []string{"area", "total", "percent"}, []string{"Obras", "0.00", "0.00"}, 1},
		{ViewAccounts, []string{"account", "row_ids", "total", "percent", "breakdown"}, []string{"Compras", "2", "300.00", "60.00", "Frota=100.00; Pessoal=200.00"}, 1},
		{ViewColumns, []string{"column", "area", "total", "percent"}, []string{"Pessoal - Salário", "Pessoal", "330.00", "66.00"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			opts, err := ViewOptions(tt.view, views)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHead, opts.Headers)
			require.Len(t, opts.Records, tt.wantRows)
			assert.Equal(t, tt.wantFirst, opts.Records[0])

			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, opts))
			records, err := csv.NewReader(&buf).ReadAll()
			require.NoError(t, err)
			assert.Len(t, records, tt.wantRows+1)
		})
	}
}

func TestViewOptionsUnknownView(t *testing.T) {
	_, err := ViewOptions("nope", sampleViews())
	assert.Error(t, err)
}
