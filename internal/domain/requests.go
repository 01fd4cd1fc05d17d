package domain

import "github.com/shopspring/decimal"

type OrderCreateRequest struct {
	Reference string `json:"reference" validate:"required,max=64"`
	FirstName string `json:"first_name" validate:"required,max=120"`
	LastName  string `json:"last_name" validate:"max=120"`
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name" validate:"max=120"`
	PaxAdult  int    `json:"pax_adult" validate:"gte=0"`
	PaxChild  int    `json:"pax_child" validate:"gte=0"`
	PaxInfant int    `json:"pax_infant" validate:"gte=0"`
}

type BookingCreateRequest struct {
	Kind         BookingKind     `json:"kind" validate:"required,oneof=tour transfer"`
	OrderID      string          `json:"order_id" validate:"required"`
	Date         string          `json:"date" validate:"required,datetime=2006-01-02"`
	Time         string          `json:"time"`
	Status       BookingStatus   `json:"status"`
	SendTo       string          `json:"send_to"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Detail       string          `json:"detail"`
	Hotel        string          `json:"hotel"`
	Room         string          `json:"room"`
	PickupFrom   string          `json:"pickup_from"`
	DropTo       string          `json:"drop_to"`
	Flight       string          `json:"flight"`
	FlightTime   string          `json:"flight_time"`
	Note         string          `json:"note"`
}

type BookingStatusRequest struct {
	Status BookingStatus `json:"status" validate:"required,oneof=pending booked in_progress completed cancelled"`
}

type DailyBookingsResponse struct {
	Kind   BookingKind      `json:"kind"`
	Date   string           `json:"date"`
	Groups []RecipientGroup `json:"groups"`
	Total  int              `json:"total"`
}

type RecipientGroup struct {
	Recipient Contact           `json:"recipient"`
	Bookings  []EnrichedBooking `json:"bookings"`
}

type VoucherCreateRequest struct {
	BookingID     string           `json:"booking_id" validate:"required"`
	BookingType   BookingKind      `json:"booking_type" validate:"required,oneof=tour transfer"`
	CustomerName  string           `json:"customer_name"`
	Signature     string           `json:"signature"`
	PaymentOption string           `json:"payment_option"`
	PaymentAmount decimal.Decimal  `json:"payment_amount"`
	Tour          *TourVoucher     `json:"tour"`
	Transfer      *TransferVoucher `json:"transfer"`
}

type VoucherUpdateRequest struct {
	CustomerName  *string          `json:"customer_name,omitempty"`
	Signature     *string          `json:"signature,omitempty"`
	PaymentOption *string          `json:"payment_option,omitempty"`
	PaymentAmount *decimal.Decimal `json:"payment_amount,omitempty"`
	Tour          *TourVoucher     `json:"tour,omitempty"`
	Transfer      *TransferVoucher `json:"transfer,omitempty"`
}

type PaymentCreateRequest struct {
	OrderID      string        `json:"order_id"`
	CustomerName string        `json:"customer_name" validate:"required"`
	AgentName    string        `json:"agent_name"`
	Lines        []PaymentLine `json:"lines" validate:"required,min=1,dive"`
}

type PaymentLinesUpdateRequest struct {
	Lines []PaymentLine `json:"lines" validate:"required,min=1,dive"`
}

type InvoiceCreateRequest struct {
	Name       string   `json:"name" validate:"required,max=200"`
	Date       string   `json:"date" validate:"required,datetime=2006-01-02"`
	PaymentIDs []string `json:"payment_ids" validate:"required,min=1,dive,required"`
}

type ReferenceEntryRequest struct {
	Value       string `json:"value" validate:"required,max=200"`
	Description string `json:"description" validate:"max=500"`
	Phone       string `json:"phone" validate:"max=40"`
}

type DuplicateCheck struct {
	Exists bool            `json:"exists"`
	Match  *ReferenceEntry `json:"match,omitempty"`
}
