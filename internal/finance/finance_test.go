package finance

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAggregateGroupTwoSingleBookings(t *testing.T) {
	lines := []Line{
		{Quantity: 1, UnitPrice: d("1000"), UnitCost: d("600")},
		{Quantity: 1, UnitPrice: d("1000"), UnitCost: d("600")},
	}

	got := AggregateGroup(lines)

	assert.True(t, got.Row.Equal(d("2000")), "row %s", got.Row)
	assert.True(t, got.Cost.Equal(d("1200")), "cost %s", got.Cost)
	assert.True(t, got.Profit.Equal(d("800")), "profit %s", got.Profit)
}

func TestAggregateGroupProfitIsQuantityWeighted(t *testing.T) {
	lines := []Line{
		{Quantity: 3, UnitPrice: d("500"), UnitCost: d("350")},
		{Quantity: 2, UnitPrice: d("120.50"), UnitCost: d("100")},
	}

	got := AggregateGroup(lines)

	assert.True(t, got.Row.Equal(d("1741")), "row %s", got.Row)
	assert.True(t, got.Cost.Equal(d("1250")), "cost %s", got.Cost)
	assert.True(t, got.Profit.Equal(d("491")), "profit %s", got.Profit)

	unitProfits := lines[0].Profit().Add(lines[1].Profit())
	assert.False(t, got.Profit.Equal(unitProfits), "weighted profit must differ from summed unit profit")
}

func TestAggregateGroupIsOrderIndependent(t *testing.T) {
	lines := []Line{
		{Quantity: 1, UnitPrice: d("10.10"), UnitCost: d("5"), Fee: d("1")},
		{Quantity: 4, UnitPrice: d("99.99"), UnitCost: d("70.01")},
		{Quantity: 2, UnitPrice: d("0.33"), UnitCost: d("0.10"), Fee: d("0.5")},
	}
	reversed := []Line{lines[2], lines[1], lines[0]}
	rotated := []Line{lines[1], lines[2], lines[0]}

	base := AggregateGroup(lines)
	for _, perm := range [][]Line{reversed, rotated} {
		got := AggregateGroup(perm)
		assert.True(t, base.Row.Equal(got.Row))
		assert.True(t, base.Cost.Equal(got.Cost))
		assert.True(t, base.Profit.Equal(got.Profit))
		assert.True(t, base.Fee.Equal(got.Fee))
	}
}

func TestGrandTotalSumsGroupRows(t *testing.T) {
	groups := []Totals{
		AggregateGroup([]Line{{Quantity: 2, UnitPrice: d("150"), UnitCost: d("100")}}),
		AggregateGroup([]Line{{Quantity: 1, UnitPrice: d("75.25"), UnitCost: d("50"), Fee: d("10")}}),
		AggregateGroup(nil),
	}

	total := GrandTotal(groups)
	sum := Sum(groups)

	assert.True(t, total.Equal(d("375.25")), "grand total %s", total)
	assert.True(t, sum.Row.Equal(total))
	assert.True(t, sum.Amount().Equal(d("385.25")))
}

func TestLineProfitIsPerUnit(t *testing.T) {
	line := Line{Quantity: 5, UnitPrice: d("200"), UnitCost: d("150")}

	assert.True(t, line.Profit().Equal(d("50")))
	assert.True(t, line.Total().Equal(d("1000")))
	assert.True(t, line.Cost().Equal(d("750")))
}

func TestCheckRejectsValuesAboveCeiling(t *testing.T) {
	ceiling := d("1000")

	require.NoError(t, Check(ceiling, d("1000"), d("-999.99")))

	err := Check(ceiling, d("10"), d("-1000.01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValueOutOfRange))
}

func TestCheckLinesCatchesOverflowingTotals(t *testing.T) {
	ceiling := d("10000")
	lines := []Line{{Quantity: 200, UnitPrice: d("60"), UnitCost: d("10")}}

	err := CheckLines(ceiling, lines)
	assert.ErrorIs(t, err, ErrValueOutOfRange)
}

func TestCheckFallsBackToDefaultCeiling(t *testing.T) {
	assert.NoError(t, Check(decimal.Zero, d("99999999999999")))
	assert.ErrorIs(t, Check(decimal.Zero, decimal.New(2, 38)), ErrValueOutOfRange)
}

func TestCheckRejectsValuesTheColumnCannotHold(t *testing.T) {
	top := d("99999999999999999999999999999999999999.99")
	assert.NoError(t, Check(decimal.Zero, top, top.Neg()))

	for _, ceiling := range []decimal.Decimal{decimal.Zero, decimal.New(1, 38), decimal.New(1, 40)} {
		assert.ErrorIs(t, Check(ceiling, decimal.New(1, 38)), ErrValueOutOfRange, "ceiling %s", ceiling)
		assert.ErrorIs(t, Check(ceiling, decimal.New(-1, 38)), ErrValueOutOfRange, "ceiling %s", ceiling)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":           "0.00",
		"12.5":        "12.50",
		"999":         "999.00",
		"1000":        "1,000.00",
		"1234567.891": "1,234,567.89",
		"-45000.5":    "-45,000.50",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(d(in)), in)
	}
}

func TestFormatAmountDoesNotChangeValue(t *testing.T) {
	v := d("1234.5678")
	_ = FormatAmount(v)
	assert.Equal(t, "1234.5678", v.String())
	assert.Equal(t, "1234.57", Round2(v).String())
}

func TestViewProjection(t *testing.T) {
	totals := AggregateGroup([]Line{{Quantity: 1, UnitPrice: d("1000"), UnitCost: d("600")}})

	full, err := ParseView("")
	require.NoError(t, err)
	got := full.Project(totals)
	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(d("600")))
	assert.True(t, got[1].Equal(d("1000")))
	assert.True(t, got[2].Equal(d("400")))

	sell, err := ParseView("sell")
	require.NoError(t, err)
	got = sell.Project(totals)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(d("1000")))
	assert.Equal(t, []string{"Selling"}, sell.Labels())

	_, err = ParseView("profit-only")
	assert.Error(t, err)
}
