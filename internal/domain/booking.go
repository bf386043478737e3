package domain

import "time"

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentPaid       PaymentStatus = "PAID"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentExpired    PaymentStatus = "EXPIRED"
	PaymentCancelled  PaymentStatus = "CANCELLED"
)

type TicketStatus string

const (
	TicketNotIssued TicketStatus = "NOT_ISSUED"
	TicketIssuing   TicketStatus = "ISSUING"
	TicketIssued    TicketStatus = "ISSUED"
	TicketFailed    TicketStatus = "FAILED"
)

// BookingTTL is how long a booking stays payable after creation.
const BookingTTL = 30 * time.Minute

type Passenger struct {
	Title           string `json:"title,omitempty"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Gender          string `json:"gender,omitempty"`
	DateOfBirth     string `json:"dob" validate:"required"`
	PassportNumber  string `json:"passport,omitempty"`
	PassportCountry string `json:"passport_country,omitempty"`
	PassportExpiry  string `json:"passport_expiry,omitempty"`
	Nationality     string `json:"nationality,omitempty"`
	NationalID      string `json:"national_id,omitempty"`
}

// Booking is one reservation attempt. Payment and ticketing are tracked as
// independent axes: a booking can be PAID with ticket status FAILED and that
// combination must never be coerced back into a payment failure.
type Booking struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`

	Origin        string      `json:"origin"`
	Destination   string      `json:"destination"`
	DepartureDate string      `json:"departure_date"`
	ReturnDate    string      `json:"return_date,omitempty"`
	CabinClass    string      `json:"cabin_class"`
	NumPassengers int         `json:"num_passengers"`
	Passengers    []Passenger `json:"passengers"`

	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`

	// Mistifly linkage
	OrderID          string `json:"order_id"`
	PNR              string `json:"pnr"`
	BookingReference string `json:"booking_reference,omitempty"`
	AirlinePNR       string `json:"airline_pnr,omitempty"`
	RawItinerary     string `json:"-"`

	TotalAmount string `json:"total_amount"`
	Currency    string `json:"currency"`

	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentSessionID string        `json:"payment_session_id,omitempty"`
	CheckoutURL      string        `json:"checkout_url,omitempty"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	TransactionID    string        `json:"transaction_id,omitempty"`
	PaymentMethod    string        `json:"payment_method,omitempty"`

	TicketStatus  TicketStatus `json:"ticket_status"`
	TicketNumbers []string     `json:"ticket_numbers,omitempty"`
	TicketedAt    *time.Time   `json:"ticketed_at,omitempty"`
	TicketError   string       `json:"ticket_error,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) IsRoundTrip() bool {
	return b.ReturnDate != ""
}

func (b *Booking) TripType() string {
	if b.IsRoundTrip() {
		return "Round Trip"
	}
	return "One Way"
}

// ExpiredBy reports whether the booking should be read as EXPIRED: still
// awaiting payment and past its deadline. Expiry is evaluated lazily on
// access, the sweep in cmd/worker is hygiene only.
func (b *Booking) ExpiredBy(now time.Time) bool {
	return b.PaymentStatus == PaymentPending && now.After(b.ExpiresAt)
}

// Payable reports whether a payment session may still be created or retried.
func (b *Booking) Payable(now time.Time) bool {
	return b.PaymentStatus == PaymentPending && !now.After(b.ExpiresAt)
}
