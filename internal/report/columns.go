package report

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
)

type Column struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Visible bool   `json:"visible"`
}

// Layout is the ordered column list a table is built from. Report variants
// differ only in their Layout, never in the building code.
type Layout struct {
	Columns []Column
}

const (
	KeyQuantity    = "quantity"
	KeyUnitPrice   = "unit_price"
	KeyUnitCost    = "unit_cost"
	KeyUnitProfit  = "unit_profit"
	KeyFee         = "fee"
	KeyTotal       = "total"
	KeyTotalCost   = "total_cost"
	KeyTotalProfit = "total_profit"
)

var labels = map[string]string{
	"date":            "Date",
	"time":            "Time",
	"kind":            "Type",
	"status":          "Status",
	"order_reference": "Reference",
	"customer":        "Customer",
	"agent":           "Agent",
	"agent_phone":     "Agent Phone",
	"recipient":       "Send To",
	"recipient_phone": "Send To Phone",
	"pax":             "Pax",
	"detail":          "Detail",
	"hotel":           "Hotel",
	"room":            "Room",
	"pickup_from":     "Pickup",
	"drop_to":         "Drop",
	"flight":          "Flight",
	"flight_time":     "Flight Time",
	"note":            "Note",
	"description":     "Description",
	KeyQuantity:       "Qty",
	KeyUnitPrice:      "Price",
	KeyUnitCost:       "Cost",
	KeyUnitProfit:     "Profit",
	KeyFee:            "Fee",
	KeyTotal:          "Total",
	KeyTotalCost:      "Total Cost",
	KeyTotalProfit:    "Total Profit",
}

// financialKeys are computed from a record's finance.Line.
var financialKeys = map[string]bool{
	KeyQuantity:    true,
	KeyUnitPrice:   true,
	KeyUnitCost:    true,
	KeyUnitProfit:  true,
	KeyFee:         true,
	KeyTotal:       true,
	KeyTotalCost:   true,
	KeyTotalProfit: true,
}

// costKeys are hidden by the sell-only view.
var costKeys = map[string]bool{
	KeyUnitCost:    true,
	KeyUnitProfit:  true,
	KeyTotalCost:   true,
	KeyTotalProfit: true,
}

// countKeys use "0" instead of "-" when absent.
var countKeys = map[string]bool{
	"pax":       true,
	KeyQuantity: true,
}

func KnownColumn(key string) bool {
	_, ok := labels[key]
	return ok
}

func IsFinancial(key string) bool {
	return financialKeys[key]
}

// Columns builds a Layout of visible columns with their standard labels.
func Columns(keys ...string) Layout {
	cols := make([]Column, 0, len(keys))
	for _, k := range keys {
		cols = append(cols, Column{Key: k, Label: labelFor(k), Visible: true})
	}
	return Layout{Columns: cols}
}

func labelFor(key string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return key
}

// Select narrows the layout to keys in the given order. Keys the layout lacks are
// added with their standard label.
func (s Layout) Select(keys ...string) Layout {
	cols := make([]Column, 0, len(keys))
	for _, k := range keys {
		idx := slices.IndexFunc(s.Columns, func(c Column) bool { return c.Key == k })
		if idx >= 0 {
			c := s.Columns[idx]
			c.Visible = true
			cols = append(cols, c)
			continue
		}
		cols = append(cols, Column{Key: k, Label: labelFor(k), Visible: true})
	}
	return Layout{Columns: cols}
}

// WithFinancials applies a finance.View: the sell-only view hides every cost
// and profit column.
func (s Layout) WithFinancials(v finance.View) Layout {
	cols := slices.Clone(s.Columns)
	for i := range cols {
		if costKeys[cols[i].Key] {
			cols[i].Visible = v.ShowCost()
		}
	}
	return Layout{Columns: cols}
}

func (s Layout) Visible() []Column {
	out := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.Visible {
			out = append(out, c)
		}
	}
	return out
}

func (s Layout) hasFinancials() bool {
	for _, c := range s.Columns {
		if c.Visible && financialKeys[c.Key] {
			return true
		}
	}
	return false
}

// ParseColumns reads a comma-separated column list, rejecting unknown keys.
// An empty string yields nil so callers keep their preset.
func ParseColumns(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		k := strings.TrimSpace(part)
		if k == "" {
			continue
		}
		if !KnownColumn(k) {
			return nil, fmt.Errorf("unknown column %q", k)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

var (
	DailyBookingColumns = Columns(
		"time", "order_reference", "customer", "pax", "detail",
		"hotel", "room", "pickup_from", "drop_to", "flight", "flight_time",
		"agent", "agent_phone", "note",
	)

	MonthlyReportColumns = Columns(
		"order_reference", "customer", "agent", "kind", "detail", "pax", "recipient",
		KeyUnitCost, KeyUnitPrice, KeyUnitProfit,
	)

	InvoiceColumns = Columns(
		"date", "description", KeyQuantity,
		KeyUnitCost, KeyUnitPrice, KeyUnitProfit, KeyFee, KeyTotal,
	)
)
