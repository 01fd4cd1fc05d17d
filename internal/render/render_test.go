package render

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/report"
)

func sampleTable() report.Table {
	line := finance.Line{Quantity: 1, UnitPrice: decimal.NewFromInt(1000), UnitCost: decimal.NewFromInt(600)}
	sections := []report.Section{{
		Header: "2025-02-16",
		Records: []report.Record{
			{Fields: map[string]string{"customer": "<b>Ann</b>"}, Line: &line},
		},
	}}
	return report.Build(sections, report.Columns("customer", report.KeyUnitCost, report.KeyUnitPrice, report.KeyUnitProfit))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"group", "Customer", "Cost", "Price", "Profit"}, records[0])
	assert.Equal(t, []string{"2025-02-16", "<b>Ann</b>", "600.00", "1,000.00", "400.00"}, records[1])
	assert.Equal(t, []string{"2025-02-16", "Subtotal", "600.00", "1,000.00", "400.00"}, records[2])
	assert.Equal(t, []string{"", "Grand Total", "600.00", "1,000.00", "400.00"}, records[3])
}

func TestWriteCSVWithoutTotals(t *testing.T) {
	table := report.Build([]report.Section{{Header: "Van", Records: []report.Record{{}}}}, report.Columns("customer"))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))
	assert.Equal(t, "group,Customer\nVan,-\n", buf.String())
}

func TestWriteHTMLEscapesCells(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleTable(), "Monthly <Tour> Report"))

	out := buf.String()
	assert.Contains(t, out, "Monthly &lt;Tour&gt; Report")
	assert.Contains(t, out, "&lt;b&gt;Ann&lt;/b&gt;")
	assert.NotContains(t, out, "<b>Ann</b>")
	assert.Contains(t, out, `colspan="4"`)
	assert.Contains(t, out, "Grand Total")
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, sampleTable(), "Monthly Report"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWritePDFWithoutColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, report.Table{}, "Empty"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWriteVoucherPDF(t *testing.T) {
	v := domain.Voucher{
		Number:        "2025/0001",
		BookingType:   domain.BookingKindTransfer,
		PaymentOption: "cash",
		PaymentAmount: decimal.NewFromInt(1500),
		Transfer:      &domain.TransferVoucher{PickupFrom: "Airport", DropTo: "Patong"},
	}
	b := domain.EnrichedBooking{CustomerName: "Ann Lee", Pax: "2+1"}

	var buf bytes.Buffer
	require.NoError(t, WriteVoucherPDF(&buf, v, b))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestVoucherDetailsFallBackToBooking(t *testing.T) {
	b := domain.EnrichedBooking{Booking: domain.Booking{Hotel: "Kata Inn", Time: "08:30"}}
	lines := voucherDetails(domain.Voucher{Tour: &domain.TourVoucher{TourName: "James Bond"}}, b)

	assert.Contains(t, lines, "Hotel       : Kata Inn")
	assert.Contains(t, lines, "Pickup Time : 08:30")
	assert.Contains(t, lines, "Room        : -")
}
