package email

import (
	"context"
	"log"

	"flightdesk/internal/events"
)

// Sender turns booking lifecycle events into traveler notifications. The
// transport is a log line until an email provider is wired in; the worker
// treats it as fire and forget either way.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event events.BookingEvent) error {
	switch event.Type {
	case events.TypeTicketIssued:
		log.Printf("level=info msg=send ticket confirmation to=%s booking_id=%s pnr=%s tickets=%v",
			event.ContactEmail, event.BookingID, event.PNR, event.TicketNumbers)
	case events.TypeTicketFailed:
		log.Printf("level=info msg=send ticketing delay notice to=%s booking_id=%s pnr=%s",
			event.ContactEmail, event.BookingID, event.PNR)
	case events.TypeBookingPaid:
		log.Printf("level=info msg=send payment receipt to=%s booking_id=%s amount=%s %s",
			event.ContactEmail, event.BookingID, event.TotalAmount, event.Currency)
	case events.TypeBookingExpired:
		log.Printf("level=info msg=send expiry notice to=%s booking_id=%s", event.ContactEmail, event.BookingID)
	default:
		log.Printf("level=warn msg=unknown event type for notification type=%s", event.Type)
	}
	return nil
}
