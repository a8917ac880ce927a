// Package exporter renders analyses for people: rebuilt xlsx workbooks,
// CSV tables of aggregate views and Brazilian currency formatting.
//
// Example usage:
//
//	w := exporter.NewWorkbookWriter(logger)
//	err := w.Write(out, dataprocessing.ExportGrid(ds))
//
//	opts, err := exporter.ViewOptions(exporter.ViewAreas, views)
//	err = exporter.WriteCSV(os.Stdout, opts)
//
//	exporter.FormatCurrency(1234.56) // "R$ 1.234,56"
package exporter
