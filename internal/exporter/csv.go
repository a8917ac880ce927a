package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"custos/pkg/contracts/domain"
)

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes headers and records to w
func WriteCSV(w io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// View names accepted by ViewOptions
const (
	ViewAreas     = "areas"
	ViewAccounts  = "accounts"
	ViewColumns   = "columns"
	ViewZeroAreas = "zero-areas"
)

// ViewOptions builds the CSV table for one named view
func ViewOptions(view string, views domain.Views) (WriteOptions, error) {
	switch view {
	case ViewAreas:
		return areaOptions(views.Areas), nil
	case ViewZeroAreas:
		return areaOptions(views.ZeroAreas), nil
	case ViewAccounts:
		opts := WriteOptions{Headers: []string{"account", "row_ids", "total", "percent", "breakdown"}}
		for _, a := range views.Accounts {
			opts.Records = append(opts.Records, []string{
				a.Account,
				strings.Join(a.RowIDs, " "),
				formatFloat(a.Total),
				formatFloat(a.Percent),
				formatBreakdown(a.Breakdown),
			})
		}
		return opts, nil
	case ViewColumns:
		opts := WriteOptions{Headers: []string{"column", "area", "total", "percent"}}
		for _, c := range views.Columns {
			opts.Records = append(opts.Records, []string{c.Column, c.Area, formatFloat(c.Total), formatFloat(c.Percent)})
		}
		return opts, nil
	default:
		return WriteOptions{}, fmt.Errorf("unknown view %q", view)
	}
}

func areaOptions(areas []domain.AreaAggregate) WriteOptions {
	opts := WriteOptions{Headers: []string{"area", "total", "percent"}}
	for _, a := range areas {
		opts.Records = append(opts.Records, []string{a.Area, formatFloat(a.Total), formatFloat(a.Percent)})
	}
	return opts
}

// formatBreakdown renders "area=value" pairs sorted by area
func formatBreakdown(breakdown map[string]float64) string {
	areas := make([]string, 0, len(breakdown))
	for area := range breakdown {
		areas = append(areas, area)
	}
	sort.Strings(areas)

	parts := make([]string, len(areas))
	for i, area := range areas {
		parts[i] = area + "=" + formatFloat(breakdown[area])
	}
	return strings.Join(parts, "; ")
}
