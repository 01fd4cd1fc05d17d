package finance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to two fractional digits, the precision
// amounts are persisted with.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatAmount renders d with two fractional digits and comma thousands
// separators, e.g. 1234567.5 -> "1,234,567.50".
func FormatAmount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + groupThousands(intPart) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var out strings.Builder
	out.Grow(len(digits) + len(digits)/3)
	for i, c := range digits {
		if i != 0 && (len(digits)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}
