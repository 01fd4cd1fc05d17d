package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/report"
)

const rowHeight = 6.0

// WritePDF lays the table out on landscape A4 pages. Columns share the page
// width evenly and financial cells are right aligned.
func WritePDF(w io.Writer, table report.Table, title string) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	cols := table.Columns
	if len(cols) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, rowHeight, "No columns selected.")
		return output(pdf, w)
	}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageW - left - right
	colW := usable / float64(len(cols))

	align := make([]string, len(cols))
	for i, c := range cols {
		align[i] = "L"
		if report.IsFinancial(c.Key) {
			align[i] = "R"
		}
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(220, 220, 220)
	for _, c := range cols {
		pdf.CellFormat(colW, rowHeight+1, c.Label, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	for _, g := range table.Groups {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(243, 243, 243)
		pdf.CellFormat(usable, rowHeight, g.Header, "1", 1, "L", true, 0, "")

		pdf.SetFont("Helvetica", "", 8)
		for _, row := range g.Rows {
			writeRow(pdf, row, colW, align, false)
		}
		if len(g.Subtotal) > 0 {
			pdf.SetFont("Helvetica", "B", 8)
			writeRow(pdf, g.Subtotal, colW, align, false)
		}
	}
	if len(table.GrandTotal) > 0 {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(220, 220, 220)
		writeRow(pdf, table.GrandTotal, colW, align, true)
	}
	return output(pdf, w)
}

func writeRow(pdf *gofpdf.Fpdf, row []string, colW float64, align []string, fill bool) {
	for i, cell := range row {
		a := "L"
		if i < len(align) {
			a = align[i]
		}
		pdf.CellFormat(colW, rowHeight, fit(pdf, cell, colW), "1", 0, a, fill, 0, "")
	}
	pdf.Ln(-1)
}

// fit shortens text that would overflow its cell.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"..") > limit {
		r = r[:len(r)-1]
	}
	return string(r) + ".."
}

// WriteVoucherPDF renders a single voucher for the booking it was issued for.
func WriteVoucherPDF(w io.Writer, v domain.Voucher, b domain.EnrichedBooking) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Voucher "+v.Number, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, strings.ToUpper(string(v.BookingType))+" VOUCHER")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	customer := v.CustomerName
	if strings.TrimSpace(customer) == "" {
		customer = b.CustomerName
	}
	header := []string{
		"Voucher No : " + v.Number,
		"Reference  : " + safe(b.OrderReference),
		"Customer   : " + safe(customer),
		"Pax        : " + safe(b.Pax),
		"Date       : " + safe(b.Date),
		"Send To    : " + safe(b.Recipient.Name) + phoneSuffix(b.Recipient.Phone),
		"Agent      : " + safe(b.Agent.Name) + phoneSuffix(b.Agent.Phone),
	}
	for _, s := range header {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Details:")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for _, s := range voucherDetails(v, b) {
		pdf.Cell(0, 6, s)
		pdf.Ln(6)
	}
	pdf.Ln(4)

	if v.PaymentOption != "" || !v.PaymentAmount.IsZero() {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, fmt.Sprintf("Payment: %s %s", safe(v.PaymentOption), finance.FormatAmount(v.PaymentAmount)))
		pdf.Ln(10)
	}
	if v.Signature != "" {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, "Issued by: "+v.Signature, "", "", false)
	}
	return output(pdf, w)
}

func voucherDetails(v domain.Voucher, b domain.EnrichedBooking) []string {
	if t := v.Tour; t != nil {
		return []string{
			"Tour        : " + safe(firstNonEmpty(t.TourName, b.Detail)),
			"Hotel       : " + safe(firstNonEmpty(t.Hotel, b.Hotel)),
			"Room        : " + safe(firstNonEmpty(t.Room, b.Room)),
			"Pickup Time : " + safe(firstNonEmpty(t.PickupTime, b.Time)),
			"Detail      : " + safe(t.Detail),
			"Remark      : " + safe(t.Remark),
		}
	}
	if t := v.Transfer; t != nil {
		return []string{
			"Pickup From : " + safe(firstNonEmpty(t.PickupFrom, b.PickupFrom)),
			"Drop To     : " + safe(firstNonEmpty(t.DropTo, b.DropTo)),
			"Pickup Time : " + safe(firstNonEmpty(t.PickupTime, b.Time)),
			"Flight      : " + safe(firstNonEmpty(t.Flight, b.Flight)),
			"Flight Time : " + safe(firstNonEmpty(t.FlightTime, b.FlightTime)),
			"Vehicle     : " + safe(t.Vehicle),
			"Remark      : " + safe(t.Remark),
		}
	}
	return []string{"Detail      : " + safe(b.Detail)}
}

func output(pdf *gofpdf.Fpdf, w io.Writer) error {
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func safe(s string) string {
	if strings.TrimSpace(s) == "" {
		return report.PlaceholderText
	}
	return strings.TrimSpace(s)
}

func phoneSuffix(phone string) string {
	if strings.TrimSpace(phone) == "" {
		return ""
	}
	return " (" + strings.TrimSpace(phone) + ")"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
