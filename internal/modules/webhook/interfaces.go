package webhook

import (
	"context"
	"time"

	"flightdesk/internal/domain"
	"flightdesk/internal/mistifly"
)

type bookingRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	MarkProcessing(ctx context.Context, bookingID string) (bool, error)
	MarkPaid(ctx context.Context, bookingID, transactionID, method string, paidAt time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, bookingID string) (bool, error)
	MarkCancelled(ctx context.Context, bookingID string) (bool, error)
	MarkTicketIssuing(ctx context.Context, bookingID string) error
	MarkTicketIssued(ctx context.Context, bookingID string, ticketNumbers []string, airlinePNR string, ticketedAt time.Time) error
	MarkTicketFailed(ctx context.Context, bookingID, reason string) error
}

type attemptRepo interface {
	UpdateFromWebhook(ctx context.Context, sessionID string, status domain.PaymentAttemptStatus, transactionID, method, errCode, errMsg, rawBody string) error
}

type eventRepo interface {
	Create(ctx context.Context, e *domain.WebhookEvent) error
	GetByGatewayEventID(ctx context.Context, gatewayEventID string) (*domain.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id int64, processedAt time.Time) error
}

type signatureVerifier interface {
	VerifySignature(rawBody []byte, header string) bool
}

type ticketIssuer interface {
	IssueTicket(ctx context.Context, orderID string) (*mistifly.TicketResult, error)
}

type eventPublisher interface {
	BookingPaid(ctx context.Context, b *domain.Booking)
	TicketIssued(ctx context.Context, b *domain.Booking)
	TicketFailed(ctx context.Context, b *domain.Booking)
}
