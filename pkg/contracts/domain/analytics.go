package domain

// AreaAggregate is the total spent under one area prefix
type AreaAggregate struct {
	Area    string  `json:"area"`
	Total   float64 `json:"total"`
	Percent float64 `json:"percent"`
}

// AccountAggregate summarizes every row sharing an account label
type AccountAggregate struct {
	Account string   `json:"account"`
	RowIDs  []string `json:"row_ids"`
	Total   float64  `json:"total"`
	Percent float64  `json:"percent"`
	// Breakdown maps area to the account's spend there. Zero areas are omitted.
	Breakdown map[string]float64 `json:"breakdown"`
}

// ColumnAggregate is the total of one data column across all rows
type ColumnAggregate struct {
	Column  string  `json:"column"`
	Area    string  `json:"area"`
	Total   float64 `json:"total"`
	Percent float64 `json:"percent"`
}

// Views bundles every derived figure for a dataset. It is rebuilt from scratch
// on each computation.
type Views struct {
	GrandTotal float64            `json:"grand_total"`
	Areas      []AreaAggregate    `json:"areas"`
	Accounts   []AccountAggregate `json:"accounts"`
	ZeroAreas  []AreaAggregate    `json:"zero_areas"`
	Columns    []ColumnAggregate  `json:"columns"`
}
