package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func keysOf(cols []Column) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.Key)
	}
	return out
}

func TestBuildDailyListUsesPlaceholdersAndNoTotals(t *testing.T) {
	layout := Columns("time", "customer", "pax", "hotel")
	sections := []Section{{
		Header: "Phi Phi Speedboat",
		Records: []Record{
			{Fields: map[string]string{"time": "08:00", "customer": "Ann Lee", "pax": "2+1"}},
			{Fields: map[string]string{"customer": "  "}},
		},
	}}

	table := Build(sections, layout)

	require.Len(t, table.Groups, 1)
	assert.Equal(t, []string{"08:00", "Ann Lee", "2+1", "-"}, table.Groups[0].Rows[0])
	assert.Equal(t, []string{"-", "-", "0", "-"}, table.Groups[0].Rows[1])
	assert.Nil(t, table.Groups[0].Subtotal)
	assert.Nil(t, table.GrandTotal)
}

func TestBuildHonorsColumnOrder(t *testing.T) {
	layout := InvoiceColumns.Select(KeyTotal, "description", KeyQuantity)
	line := finance.Line{Quantity: 2, UnitPrice: money("150"), UnitCost: money("100")}
	sections := []Section{{Header: "Ann", Records: []Record{{Fields: map[string]string{"description": "Snorkel"}, Line: &line}}}}

	table := Build(sections, layout)

	assert.Equal(t, []string{KeyTotal, "description", KeyQuantity}, keysOf(table.Columns))
	assert.Equal(t, []string{"300.00", "Snorkel", "2"}, table.Groups[0].Rows[0])
	assert.Equal(t, []string{"300.00", "Subtotal", "2"}, table.Groups[0].Subtotal)
}

func TestBuildInvoiceSubtotalsUseWeightedProfit(t *testing.T) {
	payment := domain.Payment{
		CustomerName: "Ann Lee",
		AgentName:    "Andaman Holidays",
		Lines: []domain.PaymentLine{
			{Date: "2025-03-01", Description: "Phi Phi tour", Quantity: 3, UnitPrice: money("500"), UnitCost: money("350")},
			{Date: "2025-03-02", Description: "Airport transfer", Quantity: 1, UnitPrice: money("1200"), UnitCost: money("800"), Fee: money("50")},
		},
	}
	sections := []Section{PaymentSection(payment)}

	table := Build(sections, InvoiceColumns)

	require.Len(t, table.Groups, 1)
	group := table.Groups[0]
	assert.Equal(t, "Ann Lee (Andaman Holidays)", group.Header)
	assert.Equal(t,
		[]string{"2025-03-01", "Phi Phi tour", "3", "350.00", "500.00", "150.00", "0.00", "1,500.00"},
		group.Rows[0])
	assert.Equal(t,
		[]string{"Subtotal", "", "4", "1,850.00", "2,700.00", "850.00", "50.00", "2,700.00"},
		group.Subtotal)
	assert.True(t, group.Totals.Profit.Equal(money("850")))
	assert.True(t, table.Totals.Amount().Equal(money("2750")))
}

func TestBuildGrandTotalSumsGroups(t *testing.T) {
	one := finance.Line{Quantity: 1, UnitPrice: money("1000"), UnitCost: money("600")}
	sections := []Section{
		{Header: "2025-02-16", Records: []Record{{Line: &one}, {Line: &one}}},
		{Header: "2025-02-17", Records: []Record{{Line: &one}}},
		{Header: "", Records: nil},
	}
	layout := Columns("customer", KeyUnitCost, KeyUnitPrice, KeyUnitProfit)

	table := Build(sections, layout)

	require.Len(t, table.Groups, 3)
	assert.Equal(t, []string{"Subtotal", "1,200.00", "2,000.00", "800.00"}, table.Groups[0].Subtotal)
	assert.Equal(t, "-", table.Groups[2].Header)
	assert.Equal(t, []string{"Subtotal", "0.00", "0.00", "0.00"}, table.Groups[2].Subtotal)
	assert.Equal(t, []string{"Grand Total", "1,800.00", "3,000.00", "1,200.00"}, table.GrandTotal)

	var groups []finance.Totals
	for _, g := range table.Groups {
		groups = append(groups, g.Totals)
	}
	assert.True(t, table.Totals.Row.Equal(finance.GrandTotal(groups)))
}

func TestSellOnlyViewHidesCostColumns(t *testing.T) {
	layout := MonthlyReportColumns.WithFinancials(finance.ViewSellOnly)
	visible := keysOf(layout.Visible())

	assert.Contains(t, visible, KeyUnitPrice)
	assert.NotContains(t, visible, KeyUnitCost)
	assert.NotContains(t, visible, KeyUnitProfit)

	full := keysOf(layout.WithFinancials(finance.ViewFull).Visible())
	assert.Contains(t, full, KeyUnitCost)
	assert.Len(t, MonthlyReportColumns.Columns, len(full), "presets are not mutated")
}

func TestBookingRecordLineIsSingleUnit(t *testing.T) {
	eb := domain.EnrichedBooking{
		Booking:      domain.Booking{Date: "2025-02-16", Kind: domain.BookingKindTour, SellingPrice: money("1000"), CostPrice: money("600")},
		CustomerName: "Ann Lee",
		Pax:          "2",
	}

	rec := BookingRecord(eb)

	require.NotNil(t, rec.Line)
	assert.Equal(t, 1, rec.Line.Quantity)
	row := buildRow(Columns("customer", "kind", "flight", KeyUnitProfit).Visible(), rec)
	assert.Equal(t, []string{"Ann Lee", "tour", "-", "400.00"}, row)
}

func TestRecordWithoutLineUsesPlaceholders(t *testing.T) {
	row := buildRow(Columns(KeyQuantity, KeyUnitPrice).Visible(), Record{})
	assert.Equal(t, []string{"0", "-"}, row)
}

func TestParseColumns(t *testing.T) {
	keys, err := ParseColumns(" date, customer ,,flight")
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "customer", "flight"}, keys)

	keys, err = ParseColumns("")
	require.NoError(t, err)
	assert.Nil(t, keys)

	_, err = ParseColumns("date,password")
	assert.Error(t, err)
}
