package exporter

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Reports are written for Brazilian readers: "." groups thousands, "," marks decimals.
var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

// RoundMoney rounds v half away from zero to two decimal places
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatCurrency renders v as "R$ 1.234,56"
func FormatCurrency(v float64) string {
	return "R$ " + formatDecimal(v)
}

// FormatPercent renders p as "12,34%"
func FormatPercent(p float64) string {
	return formatDecimal(p) + "%"
}

func formatDecimal(v float64) string {
	rounded := RoundMoney(v)
	if rounded == 0 {
		rounded = 0
	}
	return brPrinter.Sprintf("%.2f", rounded)
}

// formatFloat formats a value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", RoundMoney(f))
}
