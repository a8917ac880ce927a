package domain

// Reserved id-row tokens. They are matched exactly, case included.
const (
	TokenRowID   = "ID"
	TokenAccount = "CONTA"
)

// ColumnKind classifies a schema column
type ColumnKind string

const (
	ColumnRowID   ColumnKind = "row_id"
	ColumnAccount ColumnKind = "account"
	ColumnData    ColumnKind = "data"
)

// Column describes one grid column after header reconciliation
type Column struct {
	Index int        `json:"index"`
	Kind  ColumnKind `json:"kind"`
	// Name is the flat identifier. For data columns it keys ExpenseRow.Values.
	Name string `json:"name"`
	// Area is the forward-filled area label, RawArea the label as it appeared.
	Area    string `json:"area,omitempty"`
	RawArea string `json:"raw_area,omitempty"`
	SubID   string `json:"sub_id,omitempty"`
}

// IsReserved reports whether the column holds row identity instead of values
func (c Column) IsReserved() bool {
	return c.Kind != ColumnData
}

// Schema is the ordered column list shared by every row of a dataset
type Schema struct {
	Columns []Column `json:"columns"`
}

// DataColumns returns the value-bearing columns in schema order
func (s Schema) DataColumns() []Column {
	cols := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if !c.IsReserved() {
			cols = append(cols, c)
		}
	}
	return cols
}

// IndexOf returns the grid index of the first column of the given kind, or -1
func (s Schema) IndexOf(kind ColumnKind) int {
	for _, c := range s.Columns {
		if c.Kind == kind {
			return c.Index
		}
	}
	return -1
}

// HasRowID reports whether the source carried an explicit ID column
func (s Schema) HasRowID() bool {
	return s.IndexOf(ColumnRowID) >= 0
}

// ExpenseRow is one normalized data line. RowTotal always equals the sum of Values.
type ExpenseRow struct {
	RowID    string             `json:"row_id"`
	Account  string             `json:"account"`
	Values   map[string]float64 `json:"values"`
	RowTotal float64            `json:"row_total"`
	// SourceRow is the 1-based spreadsheet row the line was read from
	SourceRow int `json:"source_row"`
}

// Clone returns a deep copy of the row
func (r ExpenseRow) Clone() ExpenseRow {
	values := make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	r.Values = values
	return r
}

// Dataset is the ordered set of rows produced by one ingestion
type Dataset struct {
	Schema Schema       `json:"schema"`
	Rows   []ExpenseRow `json:"rows"`
}

// Clone returns a deep copy so callers can mutate without touching shared state
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	clone := &Dataset{
		Schema: Schema{Columns: append([]Column(nil), d.Schema.Columns...)},
		Rows:   make([]ExpenseRow, len(d.Rows)),
	}
	for i, row := range d.Rows {
		clone.Rows[i] = row.Clone()
	}
	return clone
}

// RowRef addresses a row for rescaling. An empty Account matches any account.
type RowRef struct {
	RowID   string `json:"row_id"`
	Account string `json:"account,omitempty"`
}
