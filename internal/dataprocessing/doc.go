// Package dataprocessing turns expense spreadsheets with a two-row header into
// flat datasets and derives every aggregate view from them.
//
// # Architecture
//
// The package is organized into five steps that run in order:
//
// 1. Coercion: CoerceCell reads locale-formatted text as a float and never fails
// 2. Header: ReconcileHeader flattens the area and id rows into a Schema
// 3. Normalizer: Ingest maps data rows onto the schema and drops subtotal lines
// 4. Analytics: ComputeViews builds area, account, column and zero-area views
// 5. Rescale: RescaleRow redistributes one row to a new total
//
// ReadGrid and ParseFile load the first sheet of an .xlsx or .xls workbook,
// and ExportGrid rebuilds a grid that ingests back to the same dataset.
//
// # Usage
//
//	grid, err := dataprocessing.ParseFile("custos.xlsx")
//	if err != nil {
//	    return err
//	}
//	ds, err := dataprocessing.Ingest(grid)
//	if err != nil {
//	    return err
//	}
//	views := dataprocessing.ComputeViews(ds)
//
// After a rescale the caller recomputes views from the returned dataset:
//
//	ds, err = dataprocessing.RescaleRow(ds, domain.RowRef{RowID: "7"}, 1500)
//	views = dataprocessing.ComputeViews(ds)
//
// # Data Flow
//
//	Workbook → Grid → Schema + ExpenseRows → Views
//
// # Error Handling
//
// Errors are typed. SchemaError, ValidationError and NotFoundError match
// ErrSchema, ErrValidation and ErrNotFound through errors.Is, along with the
// specific cause such as ErrMissingAccountColumn. Ingestion is all-or-nothing
// and rescaling never modifies its input.
//
// The package holds no state and takes no locks; callers that share a dataset
// must serialize writes themselves.
package dataprocessing
