package api

import (
	"custos/pkg/contracts/domain"
)

// AnalysisList is the recent analyses listing
type AnalysisList struct {
	Analyses []domain.AnalysisSummary `json:"analyses"`
	Count    int                      `json:"count"`
}

// AnalysisViews pairs an analysis with its derived figures
type AnalysisViews struct {
	Analysis domain.AnalysisSummary `json:"analysis"`
	Views    domain.Views           `json:"views"`
}

// RowView is one row of the main table with each cell's share of the row total
type RowView struct {
	domain.ExpenseRow
	Percents map[string]float64 `json:"percents"`
}

// RowsTable is the main table: schema, rows and the per-column totals line
type RowsTable struct {
	Columns    []domain.Column          `json:"columns"`
	Rows       []RowView                `json:"rows"`
	Totals     []domain.ColumnAggregate `json:"totals"`
	GrandTotal float64                  `json:"grand_total"`
}

// AccountDetail is the drill-down of one account. Money values are rounded to cents.
type AccountDetail struct {
	Account   string             `json:"account"`
	RowIDs    []string           `json:"row_ids"`
	Total     float64            `json:"total"`
	Percent   float64            `json:"percent"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// AnalysisEvent is the payload broadcast when an analysis changes
type AnalysisEvent struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
