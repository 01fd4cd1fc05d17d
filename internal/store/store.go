package store

import (
	"context"
	"errors"
	"time"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
)

var (
	ErrNotFound                      = errors.New("not found")
	ErrInvalidInput                  = errors.New("invalid input")
	ErrConflict                      = errors.New("conflict")
	ErrReferentialIntegrityViolation = errors.New("referential integrity violation")
)

// BookingFilter selects bookings by kind and an inclusive YYYY-MM-DD range.
// Empty fields do not constrain the result.
type BookingFilter struct {
	Kind    domain.BookingKind
	From    string
	To      string
	OrderID string
}

type ReferenceStore interface {
	// ListReferenceEntries returns active entries of a category ordered by value.
	ListReferenceEntries(ctx context.Context, category domain.ReferenceCategory) ([]domain.ReferenceEntry, error)
	GetReferenceEntry(ctx context.Context, id string) (*domain.ReferenceEntry, error)
	InsertReferenceEntry(ctx context.Context, entry domain.ReferenceEntry) (*domain.ReferenceEntry, error)
	UpdateReferenceEntry(ctx context.Context, entry domain.ReferenceEntry) (*domain.ReferenceEntry, error)
	DeactivateReferenceEntry(ctx context.Context, id string) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrders(ctx context.Context, ids []string) (map[string]domain.Order, error)
	// DeleteOrder fails with ErrReferentialIntegrityViolation while bookings
	// still reference the order.
	DeleteOrder(ctx context.Context, id string) error
}

type BookingStore interface {
	// CreateBooking inserts the booking and re-derives the owning order's
	// start and end dates in the same transaction.
	CreateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status domain.BookingStatus, at time.Time) (*domain.Booking, error)
	// DeleteBooking fails with ErrReferentialIntegrityViolation while a voucher
	// is issued for the booking.
	DeleteBooking(ctx context.Context, id string) error
}

type VoucherStore interface {
	// CreateVoucher fails with ErrConflict when the booking already has one.
	CreateVoucher(ctx context.Context, voucher domain.Voucher) (*domain.Voucher, error)
	GetVoucher(ctx context.Context, id string) (*domain.Voucher, error)
	FindVoucherByBooking(ctx context.Context, bookingID string, kind domain.BookingKind) (*domain.Voucher, error)
	UpdateVoucher(ctx context.Context, voucher domain.Voucher) (*domain.Voucher, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	// GetPayments returns payments in the order of ids and ErrNotFound when
	// any id is unknown.
	GetPayments(ctx context.Context, ids []string) ([]domain.Payment, error)
	ListPayments(ctx context.Context, uninvoicedOnly bool) ([]domain.Payment, error)
	// UpdatePaymentLines replaces the lines of a payment, invoiced or not.
	UpdatePaymentLines(ctx context.Context, id string, lines []domain.PaymentLine) (*domain.Payment, error)
	// InsertInvoice persists the invoice and marks its payments invoiced
	// atomically. A payment that is already invoiced yields ErrConflict and
	// nothing is written.
	InsertInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context) ([]domain.Invoice, error)
	UpdateInvoiceTotals(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
}

// SequenceStore exposes both counter primitives. IncrementSequence is one
// atomic increment-and-get; LoadSequence and CompareAndSwapSequence support
// optimistic allocation.
type SequenceStore interface {
	IncrementSequence(ctx context.Context, key string) (int64, error)
	LoadSequence(ctx context.Context, key string) (int64, error)
	CompareAndSwapSequence(ctx context.Context, key string, expected int64, next int64) (bool, error)
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	ReferenceStore
	OrderStore
	BookingStore
	VoucherStore
	PaymentStore
	SequenceStore
	AuditStore
	UserStore
}
