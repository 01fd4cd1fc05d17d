package report

import (
	"strings"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
)

// BookingRecord exposes an enriched booking under the standard column keys.
// Its line is one unit at the booking's selling and cost price.
func BookingRecord(b domain.EnrichedBooking) Record {
	fields := map[string]string{
		"date":            b.Date,
		"time":            b.Time,
		"kind":            string(b.Kind),
		"status":          string(b.Status),
		"order_reference": b.OrderReference,
		"customer":        b.CustomerName,
		"agent":           b.Agent.Name,
		"agent_phone":     b.Agent.Phone,
		"recipient":       b.Recipient.Name,
		"recipient_phone": b.Recipient.Phone,
		"pax":             b.Pax,
		"detail":          b.Detail,
		"hotel":           b.Hotel,
		"room":            b.Room,
		"pickup_from":     b.PickupFrom,
		"drop_to":         b.DropTo,
		"flight":          b.Flight,
		"flight_time":     b.FlightTime,
		"note":            b.Note,
	}
	line := finance.Line{Quantity: 1, UnitPrice: b.SellingPrice, UnitCost: b.CostPrice}
	return Record{Fields: fields, Line: &line}
}

func PaymentLineRecord(p domain.Payment, pl domain.PaymentLine) Record {
	line := finance.LineFromPayment(pl)
	return Record{
		Fields: map[string]string{
			"date":        pl.Date,
			"description": pl.Description,
			"customer":    p.CustomerName,
			"agent":       p.AgentName,
		},
		Line: &line,
	}
}

// PaymentSection groups a payment's lines under its customer and agent.
func PaymentSection(p domain.Payment) Section {
	header := strings.TrimSpace(p.CustomerName)
	if agent := strings.TrimSpace(p.AgentName); agent != "" {
		header += " (" + agent + ")"
	}
	sec := Section{Header: header, Records: make([]Record, 0, len(p.Lines))}
	for _, pl := range p.Lines {
		sec.Records = append(sec.Records, PaymentLineRecord(p, pl))
	}
	return sec
}
