package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/aggregate"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/booking"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/report"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/xid"
)

const dateLayout = "2006-01-02"

func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (*domain.Order, error) {
	order := domain.Order{
		ID:        xid.New("ord"),
		Reference: strings.TrimSpace(req.Reference),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		AgentID:   strings.TrimSpace(req.AgentID),
		AgentName: strings.TrimSpace(req.AgentName),
		PaxAdult:  req.PaxAdult,
		PaxChild:  req.PaxChild,
		PaxInfant: req.PaxInfant,
		CreatedAt: s.now(),
	}
	if order.Reference == "" {
		return nil, domain.Invalid("reference", "is required")
	}
	if order.FirstName == "" {
		return nil, domain.Invalid("first_name", "is required")
	}
	if order.PaxAdult < 0 || order.PaxChild < 0 || order.PaxInfant < 0 {
		return nil, domain.Invalid("pax", "counts must not be negative")
	}

	if order.AgentID != "" {
		agent, err := s.repo.GetReferenceEntry(ctx, order.AgentID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.Invalid("agent_id", "unknown agent")
		}
		if err != nil {
			return nil, err
		}
		if agent.Category != domain.CategoryAgent || !agent.Active {
			return nil, domain.Invalid("agent_id", "unknown agent")
		}
		if order.AgentName == "" {
			order.AgentName = agent.Value
		}
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: order reference %q already exists", store.ErrConflict, order.Reference)
		}
		return nil, err
	}
	s.logAudit(ctx, "order.create", "order", created.ID, created.Reference)
	return created, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "order.delete", "order", id, "")
	return nil
}

func (s *Service) CreateBooking(ctx context.Context, req domain.BookingCreateRequest) (*domain.Booking, error) {
	if !req.Kind.Valid() {
		return nil, domain.Invalid("kind", "must be tour or transfer")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, domain.Invalid("order_id", "is required")
	}
	date := strings.TrimSpace(req.Date)
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, domain.Invalid("date", "must be YYYY-MM-DD")
	}

	var pickup string
	if strings.TrimSpace(req.Time) != "" {
		normalized, ok := aggregate.NormalizeTime(req.Time)
		if !ok {
			return nil, domain.Invalid("time", "must be HH:MM")
		}
		pickup = normalized
	}

	status := req.Status
	if status == "" {
		status = domain.BookingStatusPending
	}
	if !status.Valid() {
		return nil, domain.Invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	if req.CostPrice.IsNegative() || req.SellingPrice.IsNegative() {
		return nil, domain.Invalid("price", "must not be negative")
	}
	if err := s.checkAmounts(req.CostPrice, req.SellingPrice); err != nil {
		return nil, err
	}

	now := s.now()
	created, err := s.repo.CreateBooking(ctx, domain.Booking{
		ID:           xid.New("bk"),
		Kind:         req.Kind,
		OrderID:      strings.TrimSpace(req.OrderID),
		Date:         date,
		Time:         pickup,
		Status:       status,
		SendTo:       strings.TrimSpace(req.SendTo),
		CostPrice:    finance.Round2(req.CostPrice),
		SellingPrice: finance.Round2(req.SellingPrice),
		Detail:       strings.TrimSpace(req.Detail),
		Hotel:        strings.TrimSpace(req.Hotel),
		Room:         strings.TrimSpace(req.Room),
		PickupFrom:   strings.TrimSpace(req.PickupFrom),
		DropTo:       strings.TrimSpace(req.DropTo),
		Flight:       strings.TrimSpace(req.Flight),
		FlightTime:   strings.TrimSpace(req.FlightTime),
		Note:         strings.TrimSpace(req.Note),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "booking.create", "booking", created.ID, fmt.Sprintf("%s %s order=%s", created.Kind, created.Date, created.OrderID))
	return created, nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (*domain.EnrichedBooking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	enriched, err := booking.EnrichBatch(ctx, s.repo, s.catalog, []domain.Booking{*b})
	if err != nil {
		return nil, err
	}
	return &enriched[0], nil
}

func (s *Service) UpdateBookingStatus(ctx context.Context, id string, status domain.BookingStatus) (*domain.Booking, error) {
	if !status.Valid() {
		return nil, domain.Invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	updated, err := s.repo.UpdateBookingStatus(ctx, id, status, s.now())
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "booking.status", "booking", id, string(status))
	return updated, nil
}

// DeleteBooking removes a booking unless a voucher has been issued for it.
func (s *Service) DeleteBooking(ctx context.Context, id string) error {
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "booking.delete", "booking", id, "")
	return nil
}

// DailyBookings lists the non-cancelled bookings of one kind on date, grouped
// by resolved recipient and sorted by pickup time inside each group.
func (s *Service) DailyBookings(ctx context.Context, kind domain.BookingKind, date string) (domain.DailyBookingsResponse, error) {
	if !kind.Valid() {
		return domain.DailyBookingsResponse{}, domain.Invalid("kind", "must be tour or transfer")
	}
	date = strings.TrimSpace(date)
	if _, err := time.Parse(dateLayout, date); err != nil {
		return domain.DailyBookingsResponse{}, domain.Invalid("date", "must be YYYY-MM-DD")
	}

	bookings, err := s.repo.ListBookings(ctx, store.BookingFilter{Kind: kind, From: date, To: date})
	if err != nil {
		return domain.DailyBookingsResponse{}, err
	}
	bookings = withoutCancelled(bookings)

	enriched, err := booking.EnrichBatch(ctx, s.repo, s.catalog, bookings)
	if err != nil {
		return domain.DailyBookingsResponse{}, err
	}

	groups := aggregate.GroupByFunc(enriched,
		func(b domain.EnrichedBooking) domain.Contact { return b.Recipient },
		compareContacts,
	)
	resp := domain.DailyBookingsResponse{
		Kind:   kind,
		Date:   date,
		Groups: make([]domain.RecipientGroup, 0, len(groups)),
		Total:  len(enriched),
	}
	for _, g := range groups {
		aggregate.SortWithinGroup(g.Items, func(b domain.EnrichedBooking) string { return b.Time }, s.settings.TimeFallback)
		resp.Groups = append(resp.Groups, domain.RecipientGroup{Recipient: g.Key, Bookings: g.Items})
	}
	return resp, nil
}

// DailyBookingsTable renders the daily list through the table builder, one
// section per recipient.
func (s *Service) DailyBookingsTable(ctx context.Context, kind domain.BookingKind, date string, columns []string) (report.Table, error) {
	daily, err := s.DailyBookings(ctx, kind, date)
	if err != nil {
		return report.Table{}, err
	}
	layout := report.DailyBookingColumns
	if len(columns) > 0 {
		layout = layout.Select(columns...)
	}

	sections := make([]report.Section, 0, len(daily.Groups))
	for _, g := range daily.Groups {
		header := g.Recipient.Name
		if g.Recipient.Phone != "" {
			header += " (" + g.Recipient.Phone + ")"
		}
		sec := report.Section{Header: header, Records: make([]report.Record, 0, len(g.Bookings))}
		for _, b := range g.Bookings {
			sec.Records = append(sec.Records, report.BookingRecord(b))
		}
		sections = append(sections, sec)
	}
	return report.Build(sections, layout), nil
}

func withoutCancelled(bookings []domain.Booking) []domain.Booking {
	out := make([]domain.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status != domain.BookingStatusCancelled {
			out = append(out, b)
		}
	}
	return out
}

// compareContacts orders recipient groups by name. Bookings without a
// recipient sort last.
func compareContacts(a, b domain.Contact) int {
	switch {
	case a.Name == "" && b.Name != "":
		return 1
	case a.Name != "" && b.Name == "":
		return -1
	}
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.Phone, b.Phone)
}
