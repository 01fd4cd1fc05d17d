package service

import (
	"context"
	"fmt"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/aggregate"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/booking"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/period"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/report"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
)

// MonthlyReportQuery selects a monthly report. An empty Kind covers tours and
// transfers; an empty Range is the full month.
type MonthlyReportQuery struct {
	Kind    domain.BookingKind
	Month   string
	Range   string
	View    string
	Columns []string
}

// MonthlyReport groups the month's non-cancelled bookings by date, with a
// subtotal per date and a grand total.
func (s *Service) MonthlyReport(ctx context.Context, q MonthlyReportQuery) (report.Table, error) {
	if q.Kind != "" && !q.Kind.Valid() {
		return report.Table{}, domain.Invalid("kind", "must be tour or transfer")
	}
	month, err := period.ParseMonth(q.Month)
	if err != nil {
		return report.Table{}, domain.Invalid("month", err.Error())
	}
	rng, err := period.ParseRange(q.Range)
	if err != nil {
		return report.Table{}, domain.Invalid("range", err.Error())
	}
	view, err := finance.ParseView(q.View)
	if err != nil {
		return report.Table{}, domain.Invalid("view", err.Error())
	}

	from, to := period.BoundStrings(month, rng)
	bookings, err := s.repo.ListBookings(ctx, store.BookingFilter{Kind: q.Kind, From: from, To: to})
	if err != nil {
		return report.Table{}, fmt.Errorf("monthly report %s: %w", month, err)
	}
	bookings = period.Filter(withoutCancelled(bookings), func(b domain.Booking) string { return b.Date }, month, rng)

	enriched, err := booking.EnrichBatch(ctx, s.repo, s.catalog, bookings)
	if err != nil {
		return report.Table{}, err
	}

	groups := aggregate.GroupBy(enriched, func(b domain.EnrichedBooking) string { return b.Date })
	sections := make([]report.Section, 0, len(groups))
	for _, g := range groups {
		aggregate.SortWithinGroup(g.Items, func(b domain.EnrichedBooking) string { return b.Time }, s.settings.TimeFallback)
		sec := report.Section{Header: g.Key, Records: make([]report.Record, 0, len(g.Items))}
		for _, b := range g.Items {
			sec.Records = append(sec.Records, report.BookingRecord(b))
		}
		sections = append(sections, sec)
	}

	layout := report.MonthlyReportColumns
	if len(q.Columns) > 0 {
		layout = layout.Select(q.Columns...)
	}
	return report.Build(sections, layout.WithFinancials(view)), nil
}
