package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/xid"
)

const orderColumns = `id, reference, first_name, last_name, agent_id, agent_name,
	pax_adult, pax_child, pax_infant,
	COALESCE(to_char(start_date, 'YYYY-MM-DD'), ''), COALESCE(to_char(end_date, 'YYYY-MM-DD'), ''),
	created_at`

func scanOrder(r rowScanner) (domain.Order, error) {
	var o domain.Order
	err := r.Scan(&o.ID, &o.Reference, &o.FirstName, &o.LastName, &o.AgentID, &o.AgentName,
		&o.PaxAdult, &o.PaxChild, &o.PaxInfant, &o.StartDate, &o.EndDate, &o.CreatedAt)
	o.CreatedAt = o.CreatedAt.UTC()
	return o, err
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.Reference) == "" {
		return nil, store.ErrInvalidInput
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, reference, first_name, last_name, agent_id, agent_name,
			pax_adult, pax_child, pax_infant, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, order.ID, order.Reference, order.FirstName, order.LastName, order.AgentID, order.AgentName,
		order.PaxAdult, order.PaxChild, order.PaxInfant, order.CreatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	created := order
	created.StartDate, created.EndDate = "", ""
	return &created, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *Store) GetOrders(ctx context.Context, ids []string) (map[string]domain.Order, error) {
	result := make(map[string]domain.Order, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteOrder relies on the bookings foreign key: an order that still has
// bookings surfaces as ErrReferentialIntegrityViolation.
func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return mapWriteErr(err)
	}
	return expectOne(res)
}

const bookingColumns = `id, kind, order_id, to_char(booking_date, 'YYYY-MM-DD'), booking_time, status, send_to,
	cost_price, selling_price, detail, hotel, room, pickup_from, drop_to, flight, flight_time, note,
	created_at, updated_at`

func scanBooking(r rowScanner) (domain.Booking, error) {
	var b domain.Booking
	var kind, status string
	err := r.Scan(&b.ID, &kind, &b.OrderID, &b.Date, &b.Time, &status, &b.SendTo,
		&b.CostPrice, &b.SellingPrice, &b.Detail, &b.Hotel, &b.Room, &b.PickupFrom, &b.DropTo,
		&b.Flight, &b.FlightTime, &b.Note, &b.CreatedAt, &b.UpdatedAt)
	b.Kind = domain.BookingKind(kind)
	b.Status = domain.BookingStatus(status)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, err
}

// refreshOrderRange re-derives the order's start and end date from its
// remaining bookings inside tx.
func refreshOrderRange(ctx context.Context, tx queryer, orderID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders o
		SET start_date = r.start_date, end_date = r.end_date
		FROM (
			SELECT MIN(booking_date) AS start_date, MAX(booking_date) AS end_date
			FROM bookings
			WHERE order_id = $1
		) r
		WHERE o.id = $1
	`, orderID)
	return err
}

func (s *Store) CreateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error) {
	if !booking.Kind.Valid() || booking.Date == "" {
		return nil, store.ErrInvalidInput
	}
	if booking.ID == "" {
		booking.ID = xid.New("bk")
	}
	if booking.Status == "" {
		booking.Status = domain.BookingStatusPending
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	booking.UpdatedAt = booking.CreatedAt

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO bookings (
			id, kind, order_id, booking_date, booking_time, status, send_to,
			cost_price, selling_price, detail, hotel, room, pickup_from, drop_to,
			flight, flight_time, note, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, booking.ID, string(booking.Kind), booking.OrderID, booking.Date, booking.Time, string(booking.Status), booking.SendTo,
		booking.CostPrice, booking.SellingPrice, booking.Detail, booking.Hotel, booking.Room, booking.PickupFrom, booking.DropTo,
		booking.Flight, booking.FlightTime, booking.Note, booking.CreatedAt, booking.UpdatedAt)
	if err != nil {
		err = mapWriteErr(err)
		if errors.Is(err, store.ErrReferentialIntegrityViolation) {
			return nil, fmt.Errorf("%w: unknown order %s", store.ErrInvalidInput, booking.OrderID)
		}
		return nil, err
	}
	if err := refreshOrderRange(ctx, pgTx, booking.OrderID); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := booking
	return &created, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *Store) ListBookings(ctx context.Context, filter store.BookingFilter) ([]domain.Booking, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 4)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Kind != "" {
		add("kind = $%d", string(filter.Kind))
	}
	if filter.OrderID != "" {
		add("order_id = $%d", filter.OrderID)
	}
	if filter.From != "" {
		add("booking_date >= $%d", filter.From)
	}
	if filter.To != "" {
		add("booking_date <= $%d", filter.To)
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY booking_date, created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0, 64)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id string, status domain.BookingStatus, at time.Time) (*domain.Booking, error) {
	if !status.Valid() {
		return nil, store.ErrInvalidInput
	}
	b, err := scanBooking(s.db.QueryRowContext(ctx, `
		UPDATE bookings
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+bookingColumns,
		id, string(status), at.UTC()))
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// DeleteBooking relies on the vouchers foreign key to refuse deleting a
// booking that already has a voucher.
func (s *Store) DeleteBooking(ctx context.Context, id string) error {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	var orderID string
	err = pgTx.QueryRowContext(ctx, `DELETE FROM bookings WHERE id = $1 RETURNING order_id`, id).Scan(&orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return mapWriteErr(err)
	}
	if err := refreshOrderRange(ctx, pgTx, orderID); err != nil {
		return err
	}
	return pgTx.Commit()
}
