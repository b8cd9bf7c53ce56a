package monitor

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// formatUSD renders d as $1,234.56, negative values as -$1,234.56.
func formatUSD(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

// formatPercent renders d with two decimals and a percent sign.
func formatPercent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}
