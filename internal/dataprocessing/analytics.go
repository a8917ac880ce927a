package dataprocessing

import (
	"math"
	"sort"

	"custos/pkg/contracts/domain"
)

// ZeroEpsilon is the tolerance below which an aggregate counts as zero
const ZeroEpsilon = 1e-9

// ComputeViews derives every aggregate view from ds. Nothing is cached: each
// call walks the full dataset, so a rescaled row is reflected everywhere.
func ComputeViews(ds *domain.Dataset) domain.Views {
	views := domain.Views{
		Areas:     []domain.AreaAggregate{},
		Accounts:  []domain.AccountAggregate{},
		ZeroAreas: []domain.AreaAggregate{},
		Columns:   []domain.ColumnAggregate{},
	}
	if ds == nil {
		return views
	}

	for _, row := range ds.Rows {
		views.GrandTotal += row.RowTotal
	}
	views.GrandTotal = normalizeZero(views.GrandTotal)

	views.Columns = columnAggregates(ds, views.GrandTotal)
	views.Areas = areaAggregates(views.Columns, views.GrandTotal)
	views.Accounts = accountAggregates(ds, views.GrandTotal)

	for _, a := range views.Areas {
		if IsZero(a.Total) {
			views.ZeroAreas = append(views.ZeroAreas, domain.AreaAggregate{Area: a.Area})
		}
	}
	return views
}

// Percent returns part as a percentage of whole, or 0 when whole is not positive
func Percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return normalizeZero(part / whole * 100)
}

// IsZero reports whether v is within ZeroEpsilon of zero
func IsZero(v float64) bool {
	return math.Abs(v) <= ZeroEpsilon
}

// RowPercents returns each value of row as a percentage of its row total
func RowPercents(schema domain.Schema, row domain.ExpenseRow) map[string]float64 {
	percents := make(map[string]float64, len(row.Values))
	for _, col := range schema.DataColumns() {
		if v, ok := row.Values[col.Name]; ok {
			percents[col.Name] = Percent(v, row.RowTotal)
		}
	}
	return percents
}

func columnAggregates(ds *domain.Dataset, grand float64) []domain.ColumnAggregate {
	dataCols := ds.Schema.DataColumns()
	cols := make([]domain.ColumnAggregate, 0, len(dataCols))
	for _, col := range dataCols {
		var total float64
		for _, row := range ds.Rows {
			total += row.Values[col.Name]
		}
		total = normalizeZero(total)
		cols = append(cols, domain.ColumnAggregate{
			Column:  col.Name,
			Area:    AreaOf(col.Name),
			Total:   total,
			Percent: Percent(total, grand),
		})
	}
	return cols
}

func areaAggregates(cols []domain.ColumnAggregate, grand float64) []domain.AreaAggregate {
	index := make(map[string]int)
	var areas []domain.AreaAggregate
	for _, col := range cols {
		i, ok := index[col.Area]
		if !ok {
			i = len(areas)
			index[col.Area] = i
			areas = append(areas, domain.AreaAggregate{Area: col.Area})
		}
		areas[i].Total += col.Total
	}

	for i := range areas {
		areas[i].Total = normalizeZero(areas[i].Total)
		if IsZero(areas[i].Total) {
			areas[i].Total = 0
		}
		areas[i].Percent = Percent(areas[i].Total, grand)
	}
	sort.SliceStable(areas, func(i, j int) bool {
		return areas[i].Total > areas[j].Total
	})
	if areas == nil {
		areas = []domain.AreaAggregate{}
	}
	return areas
}

func accountAggregates(ds *domain.Dataset, grand float64) []domain.AccountAggregate {
	dataCols := ds.Schema.DataColumns()
	index := make(map[string]int)
	seenIDs := make(map[string]map[string]bool)
	var accounts []domain.AccountAggregate

	for _, row := range ds.Rows {
		i, ok := index[row.Account]
		if !ok {
			i = len(accounts)
			index[row.Account] = i
			seenIDs[row.Account] = make(map[string]bool)
			accounts = append(accounts, domain.AccountAggregate{
				Account:   row.Account,
				RowIDs:    []string{},
				Breakdown: make(map[string]float64),
			})
		}

		acc := &accounts[i]
		acc.Total += row.RowTotal
		if !seenIDs[row.Account][row.RowID] {
			seenIDs[row.Account][row.RowID] = true
			acc.RowIDs = append(acc.RowIDs, row.RowID)
		}
		for _, col := range dataCols {
			acc.Breakdown[AreaOf(col.Name)] += row.Values[col.Name]
		}
	}

	for i := range accounts {
		acc := &accounts[i]
		acc.Total = normalizeZero(acc.Total)
		acc.Percent = Percent(acc.Total, grand)
		for area, v := range acc.Breakdown {
			if IsZero(v) {
				delete(acc.Breakdown, area)
			}
		}
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Total > accounts[j].Total
	})
	if accounts == nil {
		accounts = []domain.AccountAggregate{}
	}
	return accounts
}
