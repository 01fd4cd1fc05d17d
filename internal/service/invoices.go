package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/period"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/report"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/xid"
)

func (s *Service) CreatePayment(ctx context.Context, req domain.PaymentCreateRequest) (*domain.Payment, error) {
	payment := domain.Payment{
		ID:           xid.New("pay"),
		OrderID:      strings.TrimSpace(req.OrderID),
		CustomerName: strings.TrimSpace(req.CustomerName),
		AgentName:    strings.TrimSpace(req.AgentName),
		CreatedAt:    s.now(),
	}

	if payment.OrderID != "" {
		order, err := s.repo.GetOrder(ctx, payment.OrderID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.Invalid("order_id", "unknown order")
		}
		if err != nil {
			return nil, err
		}
		if payment.CustomerName == "" {
			payment.CustomerName = order.CustomerName()
		}
		if payment.AgentName == "" {
			payment.AgentName = order.AgentName
		}
	}
	if payment.CustomerName == "" {
		return nil, domain.Invalid("customer_name", "is required")
	}
	if len(req.Lines) == 0 {
		return nil, domain.Invalid("lines", "at least one line is required")
	}

	lines, err := s.paymentLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	payment.Lines = lines

	created, err := s.repo.CreatePayment(ctx, payment)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "payment.create", "payment", created.ID, fmt.Sprintf("customer=%s lines=%d", created.CustomerName, len(created.Lines)))
	return created, nil
}

// UpdatePaymentLines replaces a payment's lines. An invoice that already
// holds the payment keeps its saved totals until RecomputeInvoice runs.
func (s *Service) UpdatePaymentLines(ctx context.Context, id string, req domain.PaymentLinesUpdateRequest) (*domain.Payment, error) {
	current, err := s.repo.GetPayments(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, domain.Invalid("lines", "at least one line is required")
	}
	lines, err := s.paymentLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdatePaymentLines(ctx, id, lines)
	if err != nil {
		return nil, err
	}
	detail := fmt.Sprintf("lines %d -> %d", len(current[0].Lines), len(updated.Lines))
	if updated.Invoiced {
		detail += " invoice=" + updated.InvoiceID
	}
	s.logAudit(ctx, "payment.update_lines", "payment", updated.ID, detail)
	return updated, nil
}

// paymentLines normalizes every line and checks the set against the amount
// ceiling.
func (s *Service) paymentLines(ctx context.Context, in []domain.PaymentLine) ([]domain.PaymentLine, error) {
	out := make([]domain.PaymentLine, 0, len(in))
	lines := make([]finance.Line, 0, len(in))
	for i, raw := range in {
		line, err := s.paymentLine(ctx, i, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
		lines = append(lines, finance.LineFromPayment(line))
	}
	if err := finance.CheckLines(s.settings.AmountCeiling, lines); err != nil {
		return nil, err
	}
	return out, nil
}

// paymentLine validates one line and fills blanks from its booking. A line
// date that cannot be read is dropped rather than rejected.
func (s *Service) paymentLine(ctx context.Context, idx int, in domain.PaymentLine) (domain.PaymentLine, error) {
	field := fmt.Sprintf("lines[%d]", idx)
	line := domain.PaymentLine{
		BookingID:   strings.TrimSpace(in.BookingID),
		Description: strings.TrimSpace(in.Description),
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		UnitCost:    in.UnitCost,
		Fee:         in.Fee,
	}
	if _, ok := period.ParseDate(in.Date); ok {
		line.Date = strings.TrimSpace(in.Date)[:len(dateLayout)]
	}

	if line.Quantity < 1 {
		return domain.PaymentLine{}, domain.Invalid(field+".quantity", "must be at least 1")
	}
	if line.UnitPrice.IsNegative() || line.UnitCost.IsNegative() || line.Fee.IsNegative() {
		return domain.PaymentLine{}, domain.Invalid(field, "amounts must not be negative")
	}

	if line.BookingID != "" {
		b, err := s.repo.GetBooking(ctx, line.BookingID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.PaymentLine{}, domain.Invalid(field+".booking_id", "unknown booking")
		}
		if err != nil {
			return domain.PaymentLine{}, err
		}
		if line.Description == "" {
			line.Description = b.Detail
		}
		if line.Date == "" {
			line.Date = b.Date
		}
		if line.UnitPrice.IsZero() && line.UnitCost.IsZero() {
			line.UnitPrice = b.SellingPrice
			line.UnitCost = b.CostPrice
		}
	}
	if line.Description == "" {
		return domain.PaymentLine{}, domain.Invalid(field+".description", "is required")
	}

	line.UnitPrice = finance.Round2(line.UnitPrice)
	line.UnitCost = finance.Round2(line.UnitCost)
	line.Fee = finance.Round2(line.Fee)
	return line, nil
}

func (s *Service) ListPayments(ctx context.Context, uninvoicedOnly bool) ([]domain.Payment, error) {
	return s.repo.ListPayments(ctx, uninvoicedOnly)
}

// CreateInvoice snapshots the totals of the selected payments and marks them
// invoiced. Every payment must exist and be uninvoiced; totals outside the
// amount ceiling abort before anything is written.
func (s *Service) CreateInvoice(ctx context.Context, req domain.InvoiceCreateRequest) (*domain.Invoice, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Invalid("name", "is required")
	}
	date := strings.TrimSpace(req.Date)
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, domain.Invalid("date", "must be YYYY-MM-DD")
	}
	ids, err := paymentIDs(req.PaymentIDs)
	if err != nil {
		return nil, err
	}

	payments, err := s.repo.GetPayments(ctx, ids)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Invalid("payment_ids", err.Error())
	}
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		if p.Invoiced {
			return nil, fmt.Errorf("%w: payment %s already invoiced by %s", store.ErrConflict, p.ID, p.InvoiceID)
		}
	}

	invoice := domain.Invoice{
		ID:         xid.New("inv"),
		Name:       name,
		Date:       date,
		PaymentIDs: ids,
		CreatedAt:  s.now(),
	}
	if err := s.applyTotals(&invoice, payments); err != nil {
		return nil, err
	}
	invoice.UpdatedAt = invoice.CreatedAt

	created, err := s.repo.InsertInvoice(ctx, invoice)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "invoice.create", "invoice", created.ID,
		fmt.Sprintf("payments=%d amount=%s", len(created.PaymentIDs), created.TotalAmount.StringFixed(2)))
	return created, nil
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx)
}

// InvoiceTable lays an invoice out as one section per payment, in the order
// the payments were selected.
func (s *Service) InvoiceTable(ctx context.Context, id string, view finance.View, columns []string) (*domain.Invoice, report.Table, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, report.Table{}, err
	}
	payments, err := s.repo.GetPayments(ctx, invoice.PaymentIDs)
	if err != nil {
		return nil, report.Table{}, err
	}

	layout := report.InvoiceColumns
	if len(columns) > 0 {
		layout = layout.Select(columns...)
	}
	sections := make([]report.Section, 0, len(payments))
	for _, p := range payments {
		sections = append(sections, report.PaymentSection(p))
	}
	return invoice, report.Build(sections, layout.WithFinancials(view)), nil
}

// RecomputeInvoice refreshes the cached totals from the payments' current
// lines, picking up edits made through UpdatePaymentLines. Saved invoices are
// otherwise never re-derived.
func (s *Service) RecomputeInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.GetPayments(ctx, invoice.PaymentIDs)
	if err != nil {
		return nil, err
	}
	before := invoice.TotalAmount
	if err := s.applyTotals(invoice, payments); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateInvoiceTotals(ctx, *invoice)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "invoice.recompute", "invoice", updated.ID,
		fmt.Sprintf("amount %s -> %s", before.StringFixed(2), updated.TotalAmount.StringFixed(2)))
	return updated, nil
}

// applyTotals computes the four cached totals, checking every figure against
// the amount ceiling.
func (s *Service) applyTotals(invoice *domain.Invoice, payments []domain.Payment) error {
	lines := finance.LinesFromPayments(payments)
	if err := finance.CheckLines(s.settings.AmountCeiling, lines); err != nil {
		return err
	}
	totals := finance.AggregateGroup(lines)
	invoice.TotalAmount = finance.Round2(totals.Amount())
	invoice.TotalCost = finance.Round2(totals.Cost)
	invoice.TotalSelling = finance.Round2(totals.Row)
	invoice.TotalProfit = finance.Round2(totals.Profit)
	return nil
}

func paymentIDs(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, domain.Invalid("payment_ids", "at least one payment is required")
	}
	ids := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, domain.Invalid("payment_ids", "must not contain empty ids")
		}
		if _, dup := seen[id]; dup {
			return nil, domain.Invalid("payment_ids", fmt.Sprintf("payment %s listed twice", id))
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
