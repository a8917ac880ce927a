package dataprocessing

import (
	"math"

	"custos/pkg/contracts/domain"
)

// FindRow returns the index of the first row matching ref in dataset order,
// or -1. An empty ref.Account matches any account.
func FindRow(ds *domain.Dataset, ref domain.RowRef) int {
	for i, row := range ds.Rows {
		if row.RowID != ref.RowID {
			continue
		}
		if ref.Account != "" && row.Account != ref.Account {
			continue
		}
		return i
	}
	return -1
}

// RescaleRow returns a copy of ds in which the row addressed by ref sums to
// newTotal. ds itself is never modified, so a failed call leaves it intact.
//
// With a positive old total every value keeps its share of the total. Any
// other old total splits newTotal evenly across the row's value columns.
// Callers must recompute views afterwards.
func RescaleRow(ds *domain.Dataset, ref domain.RowRef, newTotal float64) (*domain.Dataset, error) {
	if math.IsNaN(newTotal) || math.IsInf(newTotal, 0) {
		return nil, &ValidationError{Reason: ErrInvalidTotal}
	}
	if ds == nil {
		return nil, &NotFoundError{RowID: ref.RowID, Account: ref.Account}
	}

	i := FindRow(ds, ref)
	if i < 0 {
		return nil, &NotFoundError{RowID: ref.RowID, Account: ref.Account}
	}

	row, err := rescale(ds.Schema, ds.Rows[i], newTotal)
	if err != nil {
		return nil, err
	}

	out := ds.Clone()
	out.Rows[i] = row
	return out, nil
}

func rescale(schema domain.Schema, row domain.ExpenseRow, newTotal float64) (domain.ExpenseRow, error) {
	updated := row.Clone()
	oldTotal := row.RowTotal

	if oldTotal > 0 {
		for key, v := range updated.Values {
			updated.Values[key] = normalizeZero(v / oldTotal * newTotal)
		}
	} else {
		var keys []string
		for _, col := range schema.DataColumns() {
			if _, ok := updated.Values[col.Name]; ok {
				keys = append(keys, col.Name)
			}
		}
		if len(keys) == 0 {
			return domain.ExpenseRow{}, &ValidationError{Reason: ErrNothingToRescale, Detail: "row " + row.RowID}
		}
		share := newTotal / float64(len(keys))
		for _, key := range keys {
			updated.Values[key] = normalizeZero(share)
		}
	}

	updated.RowTotal = SumValues(schema, updated.Values)
	return updated, nil
}
