package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/xid"
)

const paymentColumns = `id, order_id, customer_name, agent_name, lines, COALESCE(invoice_id, ''), created_at`

func scanPayment(r rowScanner) (domain.Payment, error) {
	var p domain.Payment
	var lines []byte
	if err := r.Scan(&p.ID, &p.OrderID, &p.CustomerName, &p.AgentName, &lines, &p.InvoiceID, &p.CreatedAt); err != nil {
		return domain.Payment{}, err
	}
	if err := json.Unmarshal(lines, &p.Lines); err != nil {
		return domain.Payment{}, fmt.Errorf("decode payment %s lines: %w", p.ID, err)
	}
	p.Invoiced = p.InvoiceID != ""
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if len(payment.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.Invoiced = false
	payment.InvoiceID = ""

	lines, err := json.Marshal(payment.Lines)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, customer_name, agent_name, lines, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, payment.ID, payment.OrderID, payment.CustomerName, payment.AgentName, string(lines), payment.CreatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	created := payment
	created.Lines = slices.Clone(payment.Lines)
	return &created, nil
}

func (s *Store) GetPayments(ctx context.Context, ids []string) ([]domain.Payment, error) {
	return getPayments(ctx, s.db, ids, false)
}

// getPayments loads payments in the order of ids. With lock set the rows are
// held FOR UPDATE until the surrounding transaction ends.
func getPayments(ctx context.Context, q queryer, ids []string, lock bool) ([]domain.Payment, error) {
	if len(ids) == 0 {
		return []domain.Payment{}, nil
	}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ANY($1)`
	if lock {
		query += ` ORDER BY id FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]domain.Payment, len(ids))
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]domain.Payment, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: payment %s", store.ErrNotFound, id)
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *Store) ListPayments(ctx context.Context, uninvoicedOnly bool) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE NOT $1 OR invoice_id IS NULL
		ORDER BY created_at, id
	`, uninvoicedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 32)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) UpdatePaymentLines(ctx context.Context, id string, lines []domain.PaymentLine) (*domain.Payment, error) {
	if len(lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(s.db.QueryRowContext(ctx, `
		UPDATE payments
		SET lines = $2
		WHERE id = $1
		RETURNING `+paymentColumns,
		id, string(raw)))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

const invoiceColumns = `id, name, to_char(invoice_date, 'YYYY-MM-DD'), payment_ids,
	total_amount, total_cost, total_selling, total_profit, created_at, updated_at`

func scanInvoice(r rowScanner) (domain.Invoice, error) {
	var inv domain.Invoice
	var paymentIDs []byte
	if err := r.Scan(&inv.ID, &inv.Name, &inv.Date, &paymentIDs,
		&inv.TotalAmount, &inv.TotalCost, &inv.TotalSelling, &inv.TotalProfit, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return domain.Invoice{}, err
	}
	if err := json.Unmarshal(paymentIDs, &inv.PaymentIDs); err != nil {
		return domain.Invoice{}, fmt.Errorf("decode invoice %s payment ids: %w", inv.ID, err)
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return inv, nil
}

// InsertInvoice writes the invoice and claims its payments in one
// serializable transaction. The payment rows are locked first so two
// invoices can never claim the same payment.
func (s *Store) InsertInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if len(invoice.PaymentIDs) == 0 {
		return nil, store.ErrInvalidInput
	}
	seen := make(map[string]struct{}, len(invoice.PaymentIDs))
	for _, id := range invoice.PaymentIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: payment %s listed twice", store.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}
	if invoice.ID == "" {
		invoice.ID = xid.New("inv")
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	invoice.UpdatedAt = invoice.CreatedAt

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	payments, err := getPayments(ctx, pgTx, invoice.PaymentIDs, true)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		if p.Invoiced {
			return nil, fmt.Errorf("%w: payment %s already invoiced by %s", store.ErrConflict, p.ID, p.InvoiceID)
		}
	}

	paymentIDs, err := json.Marshal(invoice.PaymentIDs)
	if err != nil {
		return nil, err
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO invoices (
			id, name, invoice_date, payment_ids,
			total_amount, total_cost, total_selling, total_profit, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, invoice.ID, invoice.Name, invoice.Date, string(paymentIDs),
		invoice.TotalAmount, invoice.TotalCost, invoice.TotalSelling, invoice.TotalProfit, invoice.CreatedAt, invoice.UpdatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}

	res, err := pgTx.ExecContext(ctx, `
		UPDATE payments
		SET invoice_id = $1
		WHERE id = ANY($2) AND invoice_id IS NULL
	`, invoice.ID, invoice.PaymentIDs)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected != int64(len(invoice.PaymentIDs)) {
		return nil, fmt.Errorf("%w: payments changed while invoicing", store.ErrConflict)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := invoice
	created.PaymentIDs = slices.Clone(invoice.PaymentIDs)
	return &created, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, 32)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *Store) UpdateInvoiceTotals(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, `
		UPDATE invoices
		SET total_amount = $2, total_cost = $3, total_selling = $4, total_profit = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+invoiceColumns,
		invoice.ID, invoice.TotalAmount, invoice.TotalCost, invoice.TotalSelling, invoice.TotalProfit))
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}
