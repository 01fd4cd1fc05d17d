package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/xid"
)

const voucherColumns = `id, booking_id, booking_type, year, sequence, number, customer_name, signature,
	payment_option, payment_amount, tour, transfer, created_at, updated_at`

func scanVoucher(r rowScanner) (domain.Voucher, error) {
	var v domain.Voucher
	var kind string
	var tour, transfer []byte
	if err := r.Scan(&v.ID, &v.BookingID, &kind, &v.Year, &v.Sequence, &v.Number, &v.CustomerName, &v.Signature,
		&v.PaymentOption, &v.PaymentAmount, &tour, &transfer, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return domain.Voucher{}, err
	}
	v.BookingType = domain.BookingKind(kind)
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	if len(tour) > 0 {
		v.Tour = &domain.TourVoucher{}
		if err := json.Unmarshal(tour, v.Tour); err != nil {
			return domain.Voucher{}, fmt.Errorf("decode tour voucher %s: %w", v.ID, err)
		}
	}
	if len(transfer) > 0 {
		v.Transfer = &domain.TransferVoucher{}
		if err := json.Unmarshal(transfer, v.Transfer); err != nil {
			return domain.Voucher{}, fmt.Errorf("decode transfer voucher %s: %w", v.ID, err)
		}
	}
	return v, nil
}

// jsonOrNull encodes a payload pointer, keeping nil as SQL NULL.
func jsonOrNull[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func voucherPayload(v domain.Voucher) (tour any, transfer any, err error) {
	if tour, err = jsonOrNull(v.Tour); err != nil {
		return nil, nil, err
	}
	if transfer, err = jsonOrNull(v.Transfer); err != nil {
		return nil, nil, err
	}
	return tour, transfer, nil
}

// CreateVoucher inserts the voucher. The (booking_id, booking_type) and
// (year, sequence) unique constraints surface as ErrConflict.
func (s *Store) CreateVoucher(ctx context.Context, voucher domain.Voucher) (*domain.Voucher, error) {
	var bookingKind string
	err := s.db.QueryRowContext(ctx, `SELECT kind FROM bookings WHERE id = $1`, voucher.BookingID).Scan(&bookingKind)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil || domain.BookingKind(bookingKind) != voucher.BookingType {
		return nil, fmt.Errorf("%w: unknown %s booking %s", store.ErrInvalidInput, voucher.BookingType, voucher.BookingID)
	}

	if voucher.ID == "" {
		voucher.ID = xid.New("vc")
	}
	if voucher.CreatedAt.IsZero() {
		voucher.CreatedAt = time.Now().UTC()
	}
	voucher.UpdatedAt = voucher.CreatedAt
	tour, transfer, err := voucherPayload(voucher)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vouchers (
			id, booking_id, booking_type, year, sequence, number, customer_name, signature,
			payment_option, payment_amount, tour, transfer, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, voucher.ID, voucher.BookingID, string(voucher.BookingType), voucher.Year, voucher.Sequence, voucher.Number,
		voucher.CustomerName, voucher.Signature, voucher.PaymentOption, voucher.PaymentAmount,
		tour, transfer, voucher.CreatedAt, voucher.UpdatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	created := voucher
	return &created, nil
}

func (s *Store) GetVoucher(ctx context.Context, id string) (*domain.Voucher, error) {
	v, err := scanVoucher(s.db.QueryRowContext(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *Store) FindVoucherByBooking(ctx context.Context, bookingID string, kind domain.BookingKind) (*domain.Voucher, error) {
	v, err := scanVoucher(s.db.QueryRowContext(ctx, `
		SELECT `+voucherColumns+`
		FROM vouchers
		WHERE booking_id = $1 AND booking_type = $2
	`, bookingID, string(kind)))
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// UpdateVoucher replaces the payload columns. Number, year and sequence are
// never written here.
func (s *Store) UpdateVoucher(ctx context.Context, voucher domain.Voucher) (*domain.Voucher, error) {
	tour, transfer, err := voucherPayload(voucher)
	if err != nil {
		return nil, err
	}
	v, err := scanVoucher(s.db.QueryRowContext(ctx, `
		UPDATE vouchers
		SET customer_name = $2, signature = $3, payment_option = $4, payment_amount = $5,
			tour = $6, transfer = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+voucherColumns,
		voucher.ID, voucher.CustomerName, voucher.Signature, voucher.PaymentOption, voucher.PaymentAmount, tour, transfer))
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}
