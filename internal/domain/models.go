package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type BookingKind string

const (
	BookingKindTour     BookingKind = "tour"
	BookingKindTransfer BookingKind = "transfer"
)

func (k BookingKind) Valid() bool {
	return k == BookingKindTour || k == BookingKindTransfer
}

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusBooked     BookingStatus = "booked"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusBooked, BookingStatusInProgress, BookingStatusCompleted, BookingStatusCancelled:
		return true
	default:
		return false
	}
}

type ReferenceCategory string

const (
	CategoryAgent             ReferenceCategory = "agent"
	CategoryTourRecipient     ReferenceCategory = "tour_recipient"
	CategoryTransferRecipient ReferenceCategory = "transfer_recipient"
	CategoryPlace             ReferenceCategory = "place"
	CategoryTourType          ReferenceCategory = "tour_type"
	CategoryTransferType      ReferenceCategory = "transfer_type"
)

func (c ReferenceCategory) Valid() bool {
	switch c {
	case CategoryAgent, CategoryTourRecipient, CategoryTransferRecipient, CategoryPlace, CategoryTourType, CategoryTransferType:
		return true
	default:
		return false
	}
}

// RecipientCategory maps a booking kind to the reference list its send_to
// value is resolved against.
func RecipientCategory(kind BookingKind) ReferenceCategory {
	if kind == BookingKindTransfer {
		return CategoryTransferRecipient
	}
	return CategoryTourRecipient
}

type Order struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	AgentID   string    `json:"agent_id,omitempty"`
	AgentName string    `json:"agent_name,omitempty"`
	PaxAdult  int       `json:"pax_adult"`
	PaxChild  int       `json:"pax_child"`
	PaxInfant int       `json:"pax_infant"`
	StartDate string    `json:"start_date,omitempty"`
	EndDate   string    `json:"end_date,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (o Order) CustomerName() string {
	return strings.TrimSpace(strings.TrimSpace(o.FirstName) + " " + strings.TrimSpace(o.LastName))
}

type Booking struct {
	ID           string          `json:"id"`
	Kind         BookingKind     `json:"kind"`
	OrderID      string          `json:"order_id"`
	Date         string          `json:"date"`
	Time         string          `json:"time,omitempty"`
	Status       BookingStatus   `json:"status"`
	SendTo       string          `json:"send_to,omitempty"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Detail       string          `json:"detail,omitempty"`
	Hotel        string          `json:"hotel,omitempty"`
	Room         string          `json:"room,omitempty"`
	PickupFrom   string          `json:"pickup_from,omitempty"`
	DropTo       string          `json:"drop_to,omitempty"`
	Flight       string          `json:"flight,omitempty"`
	FlightTime   string          `json:"flight_time,omitempty"`
	Note         string          `json:"note,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// EnrichedBooking is a booking joined with its order's customer and agent
// data and the resolved recipient contact.
type EnrichedBooking struct {
	Booking
	OrderReference string  `json:"order_reference"`
	CustomerName   string  `json:"customer_name"`
	Agent          Contact `json:"agent"`
	Recipient      Contact `json:"recipient"`
	PaxAdult       int     `json:"pax_adult"`
	PaxChild       int     `json:"pax_child"`
	PaxInfant      int     `json:"pax_infant"`
	Pax            string  `json:"pax"`
}

type PaymentLine struct {
	BookingID   string          `json:"booking_id,omitempty"`
	Description string          `json:"description"`
	Date        string          `json:"date,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Fee         decimal.Decimal `json:"fee"`
}

type Payment struct {
	ID           string        `json:"id"`
	OrderID      string        `json:"order_id,omitempty"`
	CustomerName string        `json:"customer_name"`
	AgentName    string        `json:"agent_name,omitempty"`
	Lines        []PaymentLine `json:"lines"`
	Invoiced     bool          `json:"invoiced"`
	InvoiceID    string        `json:"invoice_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

type Invoice struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Date         string          `json:"date"`
	PaymentIDs   []string        `json:"payment_ids"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	TotalSelling decimal.Decimal `json:"total_selling"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type TourVoucher struct {
	TourName   string `json:"tour_name"`
	Hotel      string `json:"hotel,omitempty"`
	Room       string `json:"room,omitempty"`
	PickupTime string `json:"pickup_time,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Remark     string `json:"remark,omitempty"`
}

type TransferVoucher struct {
	PickupFrom string `json:"pickup_from"`
	DropTo     string `json:"drop_to"`
	PickupTime string `json:"pickup_time,omitempty"`
	Flight     string `json:"flight,omitempty"`
	FlightTime string `json:"flight_time,omitempty"`
	Vehicle    string `json:"vehicle,omitempty"`
	Remark     string `json:"remark,omitempty"`
}

type Voucher struct {
	ID            string           `json:"id"`
	BookingID     string           `json:"booking_id"`
	BookingType   BookingKind      `json:"booking_type"`
	Year          int              `json:"year"`
	Sequence      int64            `json:"sequence"`
	Number        string           `json:"number"`
	CustomerName  string           `json:"customer_name"`
	Signature     string           `json:"signature,omitempty"`
	PaymentOption string           `json:"payment_option,omitempty"`
	PaymentAmount decimal.Decimal  `json:"payment_amount"`
	Tour          *TourVoucher     `json:"tour,omitempty"`
	Transfer      *TransferVoucher `json:"transfer,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type SequenceCounter struct {
	Key       string `json:"key"`
	LastValue int64  `json:"last_value"`
}

type ReferenceEntry struct {
	ID          string            `json:"id"`
	Category    ReferenceCategory `json:"category"`
	Value       string            `json:"value"`
	Description string            `json:"description,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Active      bool              `json:"active"`
	CreatedAt   time.Time         `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
