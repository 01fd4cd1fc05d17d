package finance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
)

var ErrValueOutOfRange = errors.New("value out of range")

// DefaultCeiling is the largest magnitude a persisted amount may carry, the
// top of NUMERIC(40, 2).
var DefaultCeiling = decimal.RequireFromString("99999999999999999999999999999999999999.99")

// Line is one priced item: a quantity of a unit sold at UnitPrice and bought
// at UnitCost, plus an optional fee that is payable but not part of the row.
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
	UnitCost  decimal.Decimal
	Fee       decimal.Decimal
}

func LineFromPayment(pl domain.PaymentLine) Line {
	return Line{
		Quantity:  pl.Quantity,
		UnitPrice: pl.UnitPrice,
		UnitCost:  pl.UnitCost,
		Fee:       pl.Fee,
	}
}

func LinesFromPayments(payments []domain.Payment) []Line {
	lines := make([]Line, 0, len(payments)*2)
	for _, p := range payments {
		for _, pl := range p.Lines {
			lines = append(lines, LineFromPayment(pl))
		}
	}
	return lines
}

func LineTotal(unitSell decimal.Decimal, quantity int) decimal.Decimal {
	return unitSell.Mul(decimal.NewFromInt(int64(quantity)))
}

func LineCost(unitCost decimal.Decimal, quantity int) decimal.Decimal {
	return unitCost.Mul(decimal.NewFromInt(int64(quantity)))
}

// LineProfit is the per-unit margin shown on individual rows. It is not
// multiplied by quantity.
func LineProfit(unitSell decimal.Decimal, unitCost decimal.Decimal) decimal.Decimal {
	return unitSell.Sub(unitCost)
}

func (l Line) Total() decimal.Decimal  { return LineTotal(l.UnitPrice, l.Quantity) }
func (l Line) Cost() decimal.Decimal   { return LineCost(l.UnitCost, l.Quantity) }
func (l Line) Profit() decimal.Decimal { return LineProfit(l.UnitPrice, l.UnitCost) }

// Totals is the aggregate of a group of lines. Profit is quantity-weighted:
// Row minus Cost, not the sum of unit profits.
type Totals struct {
	Row    decimal.Decimal
	Cost   decimal.Decimal
	Profit decimal.Decimal
	Fee    decimal.Decimal
}

// Amount is the payable amount of the group, the row total plus fees.
func (t Totals) Amount() decimal.Decimal {
	return t.Row.Add(t.Fee)
}

func (t Totals) Add(o Totals) Totals {
	return Totals{
		Row:    t.Row.Add(o.Row),
		Cost:   t.Cost.Add(o.Cost),
		Profit: t.Profit.Add(o.Profit),
		Fee:    t.Fee.Add(o.Fee),
	}
}

func AggregateGroup(lines []Line) Totals {
	var t Totals
	for _, l := range lines {
		t.Row = t.Row.Add(l.Total())
		t.Cost = t.Cost.Add(l.Cost())
		t.Fee = t.Fee.Add(l.Fee)
	}
	t.Profit = t.Row.Sub(t.Cost)
	return t
}

// GrandTotal sums the row totals of every group.
func GrandTotal(groups []Totals) decimal.Decimal {
	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Row)
	}
	return total
}

// Sum folds group totals into one Totals, used for grand-total rows.
func Sum(groups []Totals) Totals {
	var t Totals
	for _, g := range groups {
		t = t.Add(g)
	}
	return t
}

// Check fails with ErrValueOutOfRange when any amount's magnitude exceeds
// ceiling. A non-positive ceiling, or one above DefaultCeiling, falls back to
// DefaultCeiling.
func Check(ceiling decimal.Decimal, amounts ...decimal.Decimal) error {
	if !ceiling.IsPositive() || ceiling.GreaterThan(DefaultCeiling) {
		ceiling = DefaultCeiling
	}
	for _, a := range amounts {
		if a.Abs().GreaterThan(ceiling) {
			return fmt.Errorf("%w: %s exceeds %s", ErrValueOutOfRange, a.String(), ceiling.String())
		}
	}
	return nil
}

// CheckLines validates every per-line figure and the group totals.
func CheckLines(ceiling decimal.Decimal, lines []Line) error {
	for _, l := range lines {
		if err := Check(ceiling, l.UnitPrice, l.UnitCost, l.Fee, l.Total(), l.Cost()); err != nil {
			return err
		}
	}
	t := AggregateGroup(lines)
	return Check(ceiling, t.Row, t.Cost, t.Profit, t.Amount())
}
