package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/sequence"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/xid"
)

// CreateVoucher issues the one voucher a booking may carry. The existing
// voucher check runs before allocation so a rejected request does not
// consume a number.
func (s *Service) CreateVoucher(ctx context.Context, req domain.VoucherCreateRequest) (*domain.Voucher, error) {
	if !req.BookingType.Valid() {
		return nil, domain.Invalid("booking_type", "must be tour or transfer")
	}
	bookingID := strings.TrimSpace(req.BookingID)
	if bookingID == "" {
		return nil, domain.Invalid("booking_id", "is required")
	}

	b, err := s.repo.GetBooking(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Invalid("booking_id", "unknown booking")
	}
	if err != nil {
		return nil, err
	}
	if b.Kind != req.BookingType {
		return nil, domain.Invalid("booking_type", fmt.Sprintf("booking %s is a %s booking", b.ID, b.Kind))
	}

	existing, err := s.repo.FindVoucherByBooking(ctx, b.ID, b.Kind)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: booking %s already has voucher %s", store.ErrConflict, b.ID, existing.Number)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	if err := s.checkPaymentAmount(req.PaymentAmount); err != nil {
		return nil, err
	}
	tour, transfer, err := voucherPayload(*b, req.Tour, req.Transfer)
	if err != nil {
		return nil, err
	}

	customer := strings.TrimSpace(req.CustomerName)
	if customer == "" {
		order, err := s.repo.GetOrder(ctx, b.OrderID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if order != nil {
			customer = order.CustomerName()
		}
	}

	year := voucherYear(b.Date, s.now())
	n, err := s.allocator.NextValue(ctx, sequence.Key(sequence.DocumentVoucher, year))
	if err != nil {
		return nil, err
	}

	now := s.now()
	created, err := s.repo.CreateVoucher(ctx, domain.Voucher{
		ID:            xid.New("vc"),
		BookingID:     b.ID,
		BookingType:   b.Kind,
		Year:          year,
		Sequence:      n,
		Number:        sequence.DisplayNumber(year, n),
		CustomerName:  customer,
		Signature:     strings.TrimSpace(req.Signature),
		PaymentOption: strings.TrimSpace(req.PaymentOption),
		PaymentAmount: finance.Round2(req.PaymentAmount),
		Tour:          tour,
		Transfer:      transfer,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.logger.WarnContext(ctx, "voucher number discarded",
				"booking_id", b.ID,
				"number", sequence.DisplayNumber(year, n),
				"error", err,
			)
		}
		return nil, err
	}
	s.logAudit(ctx, "voucher.create", "voucher", created.ID, created.Number)
	return created, nil
}

// UpdateVoucher edits the payload of an issued voucher. Its number, year and
// booking never change.
func (s *Service) UpdateVoucher(ctx context.Context, id string, req domain.VoucherUpdateRequest) (*domain.Voucher, error) {
	current, err := s.repo.GetVoucher(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	if req.CustomerName != nil {
		next.CustomerName = strings.TrimSpace(*req.CustomerName)
	}
	if req.Signature != nil {
		next.Signature = strings.TrimSpace(*req.Signature)
	}
	if req.PaymentOption != nil {
		next.PaymentOption = strings.TrimSpace(*req.PaymentOption)
	}
	if req.PaymentAmount != nil {
		if err := s.checkPaymentAmount(*req.PaymentAmount); err != nil {
			return nil, err
		}
		next.PaymentAmount = finance.Round2(*req.PaymentAmount)
	}
	if req.Tour != nil {
		if current.BookingType != domain.BookingKindTour {
			return nil, domain.Invalid("tour", "voucher is not for a tour booking")
		}
		next.Tour = req.Tour
	}
	if req.Transfer != nil {
		if current.BookingType != domain.BookingKindTransfer {
			return nil, domain.Invalid("transfer", "voucher is not for a transfer booking")
		}
		next.Transfer = req.Transfer
	}

	updated, err := s.repo.UpdateVoucher(ctx, next)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "voucher.update", "voucher", updated.ID, updated.Number)
	return updated, nil
}

func (s *Service) GetVoucher(ctx context.Context, id string) (*domain.Voucher, error) {
	return s.repo.GetVoucher(ctx, id)
}

// VoucherDocument returns a voucher with its enriched booking, ready for
// printing.
func (s *Service) VoucherDocument(ctx context.Context, id string) (*domain.Voucher, *domain.EnrichedBooking, error) {
	voucher, err := s.repo.GetVoucher(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.GetBooking(ctx, voucher.BookingID)
	if err != nil {
		return nil, nil, err
	}
	return voucher, b, nil
}

func (s *Service) checkPaymentAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return domain.Invalid("payment_amount", "must not be negative")
	}
	return s.checkAmounts(amount)
}

// voucherPayload picks the payload matching the booking kind, defaulting it
// from the booking when none was sent.
func voucherPayload(b domain.Booking, tour *domain.TourVoucher, transfer *domain.TransferVoucher) (*domain.TourVoucher, *domain.TransferVoucher, error) {
	switch b.Kind {
	case domain.BookingKindTour:
		if transfer != nil {
			return nil, nil, domain.Invalid("transfer", "not allowed on a tour voucher")
		}
		if tour == nil {
			tour = &domain.TourVoucher{
				TourName:   b.Detail,
				Hotel:      b.Hotel,
				Room:       b.Room,
				PickupTime: b.Time,
			}
		}
		return tour, nil, nil
	default:
		if tour != nil {
			return nil, nil, domain.Invalid("tour", "not allowed on a transfer voucher")
		}
		if transfer == nil {
			transfer = &domain.TransferVoucher{
				PickupFrom: b.PickupFrom,
				DropTo:     b.DropTo,
				PickupTime: b.Time,
				Flight:     b.Flight,
				FlightTime: b.FlightTime,
			}
		}
		return nil, transfer, nil
	}
}

// voucherYear numbers a voucher in the year of its booking date, or the
// current year when the date cannot be read.
func voucherYear(date string, now time.Time) int {
	if t, err := time.Parse(dateLayout, strings.TrimSpace(date)); err == nil {
		return t.Year()
	}
	return now.Year()
}
