package finance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// View selects which financial figures a document exposes. Both views are
// projections of the same Totals.
type View string

const (
	ViewFull     View = "full"
	ViewSellOnly View = "sell"
)

func ParseView(raw string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "full":
		return ViewFull, nil
	case "sell", "sell_only":
		return ViewSellOnly, nil
	default:
		return "", fmt.Errorf("unknown view %q", raw)
	}
}

func (v View) ShowCost() bool {
	return v != ViewSellOnly
}

// Project returns the visible figures in display order: cost, sell, profit
// for ViewFull and sell alone for ViewSellOnly.
func (v View) Project(t Totals) []decimal.Decimal {
	if !v.ShowCost() {
		return []decimal.Decimal{t.Row}
	}
	return []decimal.Decimal{t.Cost, t.Row, t.Profit}
}

func (v View) Labels() []string {
	if !v.ShowCost() {
		return []string{"Selling"}
	}
	return []string{"Cost", "Selling", "Profit"}
}
