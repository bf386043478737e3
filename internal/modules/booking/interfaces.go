package booking

import (
	"context"
	"encoding/json"
	"time"

	"flightdesk/internal/domain"
	"flightdesk/internal/mistifly"
	"flightdesk/internal/monei"
)

type bookingRepo interface {
	Create(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	SetPaymentSession(ctx context.Context, bookingID, sessionID, checkoutURL string) error
	MarkExpired(ctx context.Context, bookingID string) (bool, error)
	MarkTicketIssued(ctx context.Context, bookingID string, ticketNumbers []string, airlinePNR string, ticketedAt time.Time) error
}

type attemptRepo interface {
	Create(ctx context.Context, a *domain.PaymentAttempt) error
	ListByBooking(ctx context.Context, bookingID string) ([]domain.PaymentAttempt, error)
}

// flightHub is the slice of the Mistifly client the orchestrator needs.
type flightHub interface {
	FullItinerary(ctx context.Context, params domain.SearchParams, index int) (*domain.FlightOffer, error)
	Revalidate(ctx context.Context, rawItinerary json.RawMessage) (*mistifly.Revalidation, error)
	Book(ctx context.Context, rawItinerary json.RawMessage, passengers []domain.Passenger, email, phone string) (*mistifly.BookResult, error)
	BookingDetails(ctx context.Context, orderID string) (*mistifly.BookingDetail, error)
}

type paymentGateway interface {
	CreatePayment(ctx context.Context, params monei.CreatePaymentParams) (*monei.PaymentSession, error)
}

type eventPublisher interface {
	BookingExpired(ctx context.Context, b *domain.Booking)
}
