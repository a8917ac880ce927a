package dataprocessing

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"custos/pkg/contracts/domain"
)

var nonNumericChars = regexp.MustCompile(`[^\d,.\-]`)

// CoerceCell turns a raw cell into a float. It never fails: empty, symbol-only
// or unparsable input yields 0.
func CoerceCell(c domain.Cell) float64 {
	switch c.Kind {
	case domain.CellNumber:
		return finite(c.Number)
	case domain.CellText:
		return CoerceText(c.Text)
	default:
		return 0
	}
}

// CoerceText strips everything except digits, commas, periods and minus signs,
// reads a comma as the decimal separator and parses the rest. Thousands
// separators are not supported: "1.234,56" becomes "1.234.56" and yields 0.
func CoerceText(s string) float64 {
	cleaned := nonNumericChars.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0
	}
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return finite(v)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
