package booking

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/catalog"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
)

// Joiner denormalizes bookings with their order and the reference lists for
// agents and recipients. It is built once per request from already fetched
// lists and never touches the store itself.
type Joiner struct {
	agents             []domain.ReferenceEntry
	agentsByID         map[string]domain.ReferenceEntry
	tourRecipients     []domain.ReferenceEntry
	transferRecipients []domain.ReferenceEntry
}

func NewJoiner(agents, tourRecipients, transferRecipients []domain.ReferenceEntry) *Joiner {
	byID := make(map[string]domain.ReferenceEntry, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}
	return &Joiner{
		agents:             agents,
		agentsByID:         byID,
		tourRecipients:     tourRecipients,
		transferRecipients: transferRecipients,
	}
}

// Enrich attaches order and agent data to b. A nil order leaves customer and
// agent fields empty for the renderer to replace with placeholders.
func (j *Joiner) Enrich(b domain.Booking, order *domain.Order) domain.EnrichedBooking {
	out := domain.EnrichedBooking{
		Booking:   b,
		Recipient: j.ResolveRecipient(b.SendTo, b.Kind),
		Pax:       FormatPax(0, 0, 0),
	}
	if order == nil {
		return out
	}

	out.OrderReference = order.Reference
	out.CustomerName = order.CustomerName()
	out.PaxAdult = order.PaxAdult
	out.PaxChild = order.PaxChild
	out.PaxInfant = order.PaxInfant
	out.Pax = FormatPax(order.PaxAdult, order.PaxChild, order.PaxInfant)
	out.Agent = j.resolveAgent(*order)
	return out
}

// EnrichAll enriches bookings in input order using a prefetched order map.
func (j *Joiner) EnrichAll(bookings []domain.Booking, orders map[string]domain.Order) []domain.EnrichedBooking {
	out := make([]domain.EnrichedBooking, 0, len(bookings))
	for _, b := range bookings {
		var order *domain.Order
		if o, ok := orders[b.OrderID]; ok {
			order = &o
		}
		out = append(out, j.Enrich(b, order))
	}
	return out
}

// resolveAgent prefers the catalog entry referenced by AgentID. Without one,
// the order's free-text agent name is kept and its phone looked up by name.
func (j *Joiner) resolveAgent(order domain.Order) domain.Contact {
	if order.AgentID != "" {
		if entry, ok := j.agentsByID[order.AgentID]; ok {
			return domain.Contact{Name: entry.Value, Phone: entry.Phone}
		}
	}
	name := strings.TrimSpace(order.AgentName)
	if name == "" {
		return domain.Contact{}
	}
	if entry, ok := catalog.Match(j.agents, name); ok {
		return domain.Contact{Name: name, Phone: entry.Phone}
	}
	return domain.Contact{Name: name}
}

// ResolveRecipient looks sendTo up in the recipient list for kind, exact
// match first and then case-insensitive. Unknown names come back as given
// with no phone.
func (j *Joiner) ResolveRecipient(sendTo string, kind domain.BookingKind) domain.Contact {
	list := j.tourRecipients
	if kind == domain.BookingKindTransfer {
		list = j.transferRecipients
	}
	if entry, ok := catalog.Match(list, sendTo); ok {
		return domain.Contact{Name: entry.Value, Phone: entry.Phone}
	}
	return domain.Contact{Name: strings.TrimSpace(sendTo)}
}

// FormatPax joins the non-zero adult, child and infant counts with "+", or
// returns "0" when all are zero.
func FormatPax(adult, child, infant int) string {
	parts := make([]string, 0, 3)
	for _, n := range []int{adult, child, infant} {
		if n > 0 {
			parts = append(parts, strconv.Itoa(n))
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "+")
}

type ReferenceSource interface {
	FindByCategory(ctx context.Context, category domain.ReferenceCategory) ([]domain.ReferenceEntry, error)
}

type OrderSource interface {
	GetOrders(ctx context.Context, ids []string) (map[string]domain.Order, error)
}

// Load builds a Joiner with one catalog read per needed category.
func Load(ctx context.Context, refs ReferenceSource) (*Joiner, error) {
	agents, err := refs.FindByCategory(ctx, domain.CategoryAgent)
	if err != nil {
		return nil, err
	}
	tour, err := refs.FindByCategory(ctx, domain.CategoryTourRecipient)
	if err != nil {
		return nil, err
	}
	transfer, err := refs.FindByCategory(ctx, domain.CategoryTransferRecipient)
	if err != nil {
		return nil, err
	}
	return NewJoiner(agents, tour, transfer), nil
}

// EnrichBatch resolves all orders of bookings in one lookup and enriches them.
func EnrichBatch(ctx context.Context, orders OrderSource, refs ReferenceSource, bookings []domain.Booking) ([]domain.EnrichedBooking, error) {
	if len(bookings) == 0 {
		return []domain.EnrichedBooking{}, nil
	}
	joiner, err := Load(ctx, refs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		if b.OrderID != "" {
			ids = append(ids, b.OrderID)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	byID, err := orders.GetOrders(ctx, ids)
	if err != nil {
		return nil, err
	}
	return joiner.EnrichAll(bookings, byID), nil
}
