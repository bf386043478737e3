package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"flightdesk/internal/domain"
	"flightdesk/internal/monei"
	"flightdesk/internal/repository"
)

type Service struct {
	bookings bookingRepo
	attempts attemptRepo
	events   eventRepo
	verifier signatureVerifier
	tickets  ticketIssuer
	producer eventPublisher
	loggerf  func(format string, args ...interface{})

	now func() time.Time
}

func NewService(bookings bookingRepo, attempts attemptRepo, events eventRepo, verifier signatureVerifier, tickets ticketIssuer, producer eventPublisher, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{
		bookings: bookings,
		attempts: attempts,
		events:   events,
		verifier: verifier,
		tickets:  tickets,
		producer: producer,
		loggerf:  loggerf,
		now:      time.Now,
	}
}

// eventPayload is the gateway payment object as delivered in the webhook.
type eventPayload struct {
	EventID       string `json:"eventId"`
	ID            string `json:"id"`
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	PaymentMethod struct {
		Type string `json:"type"`
	} `json:"paymentMethod"`
}

// gatewayEventID is the idempotency key for a delivery. Some gateway
// configurations carry an explicit event id; otherwise the payment id plus
// status identifies the logical event, so a redelivery of the same
// transition deduplicates while a later transition of the same payment does
// not.
func (p eventPayload) gatewayEventID() string {
	if p.EventID != "" {
		return p.EventID
	}
	return p.ID + ":" + strings.ToLower(p.Status)
}

// Process handles one webhook delivery end to end. The contract with the
// gateway: nil means acknowledge with 200 (including duplicates and events
// we cannot resolve, which would never succeed on redelivery),
// ErrInvalidSignature means reject with 403, anything else is a transient
// internal failure the gateway should retry.
func (s *Service) Process(ctx context.Context, rawBody []byte, sigHeader string) error {
	if !s.verifier.VerifySignature(rawBody, sigHeader) {
		s.loggerf("level=warn msg=webhook signature rejected")
		return ErrInvalidSignature
	}

	var p eventPayload
	if err := json.Unmarshal(rawBody, &p); err != nil || p.ID == "" || p.Status == "" {
		// Signed but unreadable. Redelivery cannot fix it, ack and keep the
		// log line as the trace.
		s.loggerf("level=error msg=webhook payload unreadable err=%v body_len=%d", err, len(rawBody))
		return nil
	}

	eventID := p.gatewayEventID()
	record, err := s.events.GetByGatewayEventID(ctx, eventID)
	switch {
	case err == nil && record.Processed:
		s.loggerf("level=info msg=webhook duplicate event_id=%s", eventID)
		return nil
	case err == nil:
		// The audit row exists but effects never became durable: an earlier
		// delivery failed mid-processing after the insert. Resume against
		// the stored row; the conditional store transitions make
		// re-dispatch idempotent.
		s.loggerf("level=info msg=webhook resuming unprocessed event event_id=%s", eventID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = nil
	default:
		return fmt.Errorf("load event: %w", err)
	}

	b, err := s.bookings.GetByID(ctx, p.OrderID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("resolve booking: %w", err)
		}
		// Unknown booking: keep the event for audit, acknowledge so the
		// gateway stops retrying something we can never resolve.
		s.loggerf("level=warn msg=webhook for unknown booking event_id=%s order_id=%s", eventID, p.OrderID)
		if record != nil {
			return nil
		}
		orphan := &domain.WebhookEvent{
			GatewayEventID: eventID,
			EventType:      strings.ToUpper(p.Status),
			RawBody:        string(rawBody),
			RawSignature:   sigHeader,
		}
		if cerr := s.events.Create(ctx, orphan); cerr != nil && !errors.Is(cerr, repository.ErrDuplicateEvent) {
			return fmt.Errorf("record orphan event: %w", cerr)
		}
		return nil
	}

	if record == nil {
		record = &domain.WebhookEvent{
			GatewayEventID: eventID,
			EventType:      strings.ToUpper(p.Status),
			RawBody:        string(rawBody),
			RawSignature:   sigHeader,
			BookingID:      &b.ID,
		}
		if err := s.events.Create(ctx, record); err != nil {
			if !errors.Is(err, repository.ErrDuplicateEvent) {
				return fmt.Errorf("record event: %w", err)
			}
			// Lost the insert race. The stored row belongs to a delivery
			// that is either in flight or already dead; take it over and
			// dispatch anyway, re-applying is a no-op when the winner
			// finishes first.
			record, err = s.events.GetByGatewayEventID(ctx, eventID)
			if err != nil {
				return fmt.Errorf("load racing event: %w", err)
			}
			if record.Processed {
				s.loggerf("level=info msg=webhook concurrent duplicate event_id=%s", eventID)
				return nil
			}
		}
	}

	if err := s.dispatch(ctx, &p, b, string(rawBody)); err != nil {
		return err
	}

	if err := s.events.MarkProcessed(ctx, record.ID, s.now()); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, p *eventPayload, b *domain.Booking, raw string) error {
	switch strings.ToUpper(p.Status) {
	case monei.StatusSucceeded:
		return s.handleSucceeded(ctx, p, b, raw)
	case monei.StatusFailed:
		return s.handleFailed(ctx, p, b, domain.AttemptFailed, raw)
	case monei.StatusExpired:
		// Session died at the gateway; the booking itself stays payable
		// until its own deadline.
		return s.updateAttempt(ctx, p, domain.AttemptFailed, raw)
	case monei.StatusCanceled:
		return s.handleCanceled(ctx, p, b, raw)
	case monei.StatusPending, monei.StatusAuthorized:
		if _, err := s.bookings.MarkProcessing(ctx, b.ID); err != nil {
			return fmt.Errorf("mark processing: %w", err)
		}
		return s.updateAttempt(ctx, p, domain.AttemptProcessing, raw)
	default:
		s.loggerf("level=warn msg=webhook unknown status booking_id=%s status=%s", b.ID, p.Status)
		return nil
	}
}

// handleSucceeded commits the payment first and only then starts ticket
// issuance. The order is the fence: if issuance dies mid-flight the booking
// is still durably PAID, and a ticketing failure is recorded on the ticket
// axis without ever touching the payment state.
func (s *Service) handleSucceeded(ctx context.Context, p *eventPayload, b *domain.Booking, raw string) error {
	changed, err := s.bookings.MarkPaid(ctx, b.ID, p.ID, p.PaymentMethod.Type, s.now())
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if err := s.updateAttempt(ctx, p, domain.AttemptSucceeded, raw); err != nil {
		return err
	}
	if !changed {
		// Already in a terminal payment state; nothing more to do for a
		// replayed success.
		s.loggerf("level=info msg=payment success replay ignored booking_id=%s", b.ID)
		return nil
	}
	s.loggerf("level=info msg=booking paid booking_id=%s transaction=%s method=%s", b.ID, p.ID, p.PaymentMethod.Type)
	if s.producer != nil {
		s.producer.BookingPaid(ctx, b)
	}

	if err := s.bookings.MarkTicketIssuing(ctx, b.ID); err != nil {
		return fmt.Errorf("mark ticket issuing: %w", err)
	}
	t, err := s.tickets.IssueTicket(ctx, b.OrderID)
	if err != nil {
		s.loggerf("level=error msg=ticket issuance failed booking_id=%s order_id=%s err=%v", b.ID, b.OrderID, err)
		if merr := s.bookings.MarkTicketFailed(ctx, b.ID, err.Error()); merr != nil {
			return fmt.Errorf("mark ticket failed: %w", merr)
		}
		if s.producer != nil {
			s.producer.TicketFailed(ctx, b)
		}
		// Payment is committed, the webhook is done. Ticketing gets
		// recovered out of band.
		return nil
	}
	if err := s.bookings.MarkTicketIssued(ctx, b.ID, t.TicketNumbers, t.AirlinePNR, s.now()); err != nil {
		return fmt.Errorf("mark ticket issued: %w", err)
	}
	s.loggerf("level=info msg=tickets issued booking_id=%s tickets=%v", b.ID, t.TicketNumbers)
	if s.producer != nil {
		b.TicketNumbers = t.TicketNumbers
		b.AirlinePNR = t.AirlinePNR
		s.producer.TicketIssued(ctx, b)
	}
	return nil
}

func (s *Service) handleFailed(ctx context.Context, p *eventPayload, b *domain.Booking, attemptStatus domain.PaymentAttemptStatus, raw string) error {
	changed, err := s.bookings.MarkPaymentFailed(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if changed {
		s.loggerf("level=info msg=payment failed booking_id=%s code=%s msg=%q", b.ID, p.StatusCode, p.StatusMessage)
	}
	return s.updateAttempt(ctx, p, attemptStatus, raw)
}

func (s *Service) handleCanceled(ctx context.Context, p *eventPayload, b *domain.Booking, raw string) error {
	changed, err := s.bookings.MarkCancelled(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	if changed {
		s.loggerf("level=info msg=payment cancelled booking_id=%s", b.ID)
	}
	return s.updateAttempt(ctx, p, domain.AttemptCancelled, raw)
}

func (s *Service) updateAttempt(ctx context.Context, p *eventPayload, status domain.PaymentAttemptStatus, raw string) error {
	err := s.attempts.UpdateFromWebhook(ctx, p.ID, status, p.ID, p.PaymentMethod.Type, p.StatusCode, p.StatusMessage, raw)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	return nil
}
