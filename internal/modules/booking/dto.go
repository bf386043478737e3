package booking

import (
	"encoding/json"

	"flightdesk/internal/domain"
)

// CreateBookingRequest arrives from the conversational layer once the
// traveler has picked an offer and supplied passenger details. The layer
// holds summarized search results only, so it sends the original search
// parameters plus the index of the chosen offer; RawItinerary is optional
// and used when the caller still has the full payload cached.
type CreateBookingRequest struct {
	SessionID string `json:"session_id" validate:"required"`

	Search     domain.SearchParams `json:"search" validate:"required"`
	OfferIndex int                 `json:"offer_index" validate:"gte=0"`

	RawItinerary json.RawMessage `json:"raw_itinerary,omitempty"`

	Passengers   []domain.Passenger `json:"passengers" validate:"required,min=1,dive"`
	ContactEmail string             `json:"contact_email" validate:"required,email"`
	ContactPhone string             `json:"contact_phone" validate:"required"`
}

// CreateBookingResponse reports the reservation and, when the checkout
// session could be created, where to pay. PaymentPending is true when the
// gateway call failed after a successful reservation; the booking stays
// payable and the client should retry via the payment endpoint.
type CreateBookingResponse struct {
	BookingID        string `json:"booking_id"`
	PNR              string `json:"pnr,omitempty"`
	OrderID          string `json:"order_id"`
	TotalAmount      string `json:"total_amount"`
	Currency         string `json:"currency"`
	PriceChanged     bool   `json:"price_changed,omitempty"`
	CheckoutURL      string `json:"checkout_url,omitempty"`
	PaymentPending   bool   `json:"payment_pending,omitempty"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// StatusResponse is the consolidated booking view with both status axes.
type StatusResponse struct {
	BookingID     string               `json:"booking_id"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	TicketStatus  domain.TicketStatus  `json:"ticket_status"`
	PNR           string               `json:"pnr,omitempty"`
	AirlinePNR    string               `json:"airline_pnr,omitempty"`
	TicketNumbers []string             `json:"ticket_numbers,omitempty"`
	TicketError   string               `json:"ticket_error,omitempty"`
	TotalAmount   string               `json:"total_amount"`
	Currency      string               `json:"currency"`
	CheckoutURL   string               `json:"checkout_url,omitempty"`
	TripType      string               `json:"trip_type"`
	Origin        string               `json:"origin"`
	Destination   string               `json:"destination"`
	DepartureDate string               `json:"departure_date"`
	ReturnDate    string               `json:"return_date,omitempty"`
	ExpiresAt     string               `json:"expires_at"`
}

// RetryPaymentResponse carries the fresh checkout session for a pending
// booking whose earlier session went nowhere.
type RetryPaymentResponse struct {
	BookingID   string `json:"booking_id"`
	CheckoutURL string `json:"checkout_url"`
	Attempt     int    `json:"attempt"`
}
