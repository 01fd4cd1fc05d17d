package report

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
)

const (
	PlaceholderText  = "-"
	PlaceholderCount = "0"
)

// Record is one source row: display fields by column key plus an optional
// priced line for the financial columns.
type Record struct {
	Fields map[string]string
	Line   *finance.Line
}

// Section is one group of records under a header such as a date or payment.
type Section struct {
	Header  string
	Records []Record
}

type RowGroup struct {
	Header   string         `json:"header"`
	Rows     [][]string     `json:"rows"`
	Subtotal []string       `json:"subtotal,omitempty"`
	Totals   finance.Totals `json:"-"`
}

type Table struct {
	Columns    []Column       `json:"columns"`
	Groups     []RowGroup     `json:"groups"`
	GrandTotal []string       `json:"grand_total,omitempty"`
	Totals     finance.Totals `json:"-"`
}

// Build renders sections into a plain table. Subtotal and grand-total tuples
// are only emitted when a financial column is visible.
func Build(sections []Section, layout Layout) Table {
	cols := layout.Visible()
	withTotals := layout.hasFinancials()

	table := Table{Columns: cols, Groups: make([]RowGroup, 0, len(sections))}
	groupTotals := make([]finance.Totals, 0, len(sections))
	totalQty := 0

	for _, sec := range sections {
		group := RowGroup{Header: textOr(sec.Header), Rows: make([][]string, 0, len(sec.Records))}
		lines := make([]finance.Line, 0, len(sec.Records))
		qty := 0
		for _, rec := range sec.Records {
			group.Rows = append(group.Rows, buildRow(cols, rec))
			if rec.Line != nil {
				lines = append(lines, *rec.Line)
				qty += rec.Line.Quantity
			}
		}
		group.Totals = finance.AggregateGroup(lines)
		if withTotals {
			group.Subtotal = totalsRow(cols, "Subtotal", group.Totals, qty)
		}
		groupTotals = append(groupTotals, group.Totals)
		totalQty += qty
		table.Groups = append(table.Groups, group)
	}

	table.Totals = finance.Sum(groupTotals)
	table.Totals.Row = finance.GrandTotal(groupTotals)
	if withTotals {
		table.GrandTotal = totalsRow(cols, "Grand Total", table.Totals, totalQty)
	}
	return table
}

func buildRow(cols []Column, rec Record) []string {
	row := make([]string, 0, len(cols))
	for _, c := range cols {
		if IsFinancial(c.Key) {
			row = append(row, lineCell(c.Key, rec.Line))
			continue
		}
		row = append(row, fieldCell(c.Key, rec.Fields[c.Key]))
	}
	return row
}

func fieldCell(key string, value string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if countKeys[key] {
		return PlaceholderCount
	}
	return PlaceholderText
}

func lineCell(key string, line *finance.Line) string {
	if line == nil {
		if countKeys[key] {
			return PlaceholderCount
		}
		return PlaceholderText
	}
	switch key {
	case KeyQuantity:
		return strconv.Itoa(line.Quantity)
	case KeyUnitPrice:
		return finance.FormatAmount(line.UnitPrice)
	case KeyUnitCost:
		return finance.FormatAmount(line.UnitCost)
	case KeyUnitProfit:
		return finance.FormatAmount(line.Profit())
	case KeyFee:
		return finance.FormatAmount(line.Fee)
	case KeyTotal:
		return finance.FormatAmount(line.Total())
	case KeyTotalCost:
		return finance.FormatAmount(line.Cost())
	case KeyTotalProfit:
		return finance.FormatAmount(line.Total().Sub(line.Cost()))
	}
	return PlaceholderText
}

// totalsRow lays a Totals out under the visible columns. Per-unit columns
// carry the group aggregate: price shows the row total, cost the cost total
// and profit the quantity-weighted profit.
func totalsRow(cols []Column, label string, t finance.Totals, qty int) []string {
	row := make([]string, len(cols))
	labelled := false
	for i, c := range cols {
		var v *decimal.Decimal
		switch c.Key {
		case KeyQuantity:
			row[i] = strconv.Itoa(qty)
			continue
		case KeyUnitPrice, KeyTotal:
			v = &t.Row
		case KeyUnitCost, KeyTotalCost:
			v = &t.Cost
		case KeyUnitProfit, KeyTotalProfit:
			v = &t.Profit
		case KeyFee:
			v = &t.Fee
		}
		if v != nil {
			row[i] = finance.FormatAmount(*v)
			continue
		}
		if !labelled {
			row[i] = label
			labelled = true
		}
	}
	return row
}

func textOr(s string) string {
	if strings.TrimSpace(s) == "" {
		return PlaceholderText
	}
	return strings.TrimSpace(s)
}
