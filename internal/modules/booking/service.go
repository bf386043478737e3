package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"flightdesk/internal/domain"
	"flightdesk/internal/mistifly"
	"flightdesk/internal/monei"
	"flightdesk/internal/pkg/validator"
)

type Service struct {
	bookings bookingRepo
	attempts attemptRepo
	flights  flightHub
	payments paymentGateway
	events   eventPublisher
	loggerf  func(format string, args ...interface{})

	now func() time.Time
}

func NewService(bookings bookingRepo, attempts attemptRepo, flights flightHub, payments paymentGateway, events eventPublisher, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{
		bookings: bookings,
		attempts: attempts,
		flights:  flights,
		payments: payments,
		events:   events,
		loggerf:  loggerf,
		now:      time.Now,
	}
}

// CreateBooking runs the reservation pipeline: recover the full itinerary if
// the caller only has the summary, revalidate the price, reserve with the
// hub, persist, then open a checkout session. A gateway failure after a
// successful reservation does not fail the call; the booking stays PENDING
// and the response says payment is still owed.
func (s *Service) CreateBooking(ctx context.Context, req CreateBookingRequest) (*CreateBookingResponse, error) {
	if errs := validator.Validate(req); errs != nil {
		s.loggerf("level=warn msg=booking validation failed session_id=%s fields=%v", req.SessionID, errs)
		return nil, ErrValidation
	}

	raw := req.RawItinerary
	if len(raw) == 0 {
		offer, err := s.flights.FullItinerary(ctx, req.Search, req.OfferIndex)
		if err != nil {
			if mistifly.IsKind(err, mistifly.KindNotFound) {
				return nil, fmt.Errorf("%w: %v", ErrOfferUnavailable, err)
			}
			return nil, fmt.Errorf("recover itinerary: %w", err)
		}
		if !offer.HasRawItinerary() {
			return nil, fmt.Errorf("%w: offer carries no bookable itinerary", ErrOfferUnavailable)
		}
		raw = offer.RawItinerary
	}

	rev, err := s.flights.Revalidate(ctx, raw)
	if err != nil {
		switch {
		case mistifly.IsKind(err, mistifly.KindUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrOfferUnavailable, err)
		case mistifly.IsKind(err, mistifly.KindAmbiguous):
			return nil, fmt.Errorf("%w: %v", ErrRevalidation, err)
		default:
			return nil, fmt.Errorf("revalidate: %w", err)
		}
	}
	if rev.PriceChanged {
		s.loggerf("level=info msg=price changed at revalidation session_id=%s new_amount=%s %s", req.SessionID, rev.Amount, rev.Currency)
	}

	book, err := s.flights.Book(ctx, rev.Itinerary, req.Passengers, req.ContactEmail, req.ContactPhone)
	if err != nil {
		if mistifly.IsKind(err, mistifly.KindUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrOfferUnavailable, err)
		}
		return nil, fmt.Errorf("book: %w", err)
	}

	now := s.now()
	b := &domain.Booking{
		ID:            uuid.NewString(),
		SessionID:     req.SessionID,
		Origin:        req.Search.Origin,
		Destination:   req.Search.Destination,
		DepartureDate: req.Search.DepartureDate,
		ReturnDate:    req.Search.ReturnDate,
		CabinClass:    req.Search.CabinClass,
		NumPassengers: len(req.Passengers),
		Passengers:    req.Passengers,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,

		OrderID:          book.OrderID,
		PNR:              book.PNR,
		BookingReference: book.BookingReference,
		RawItinerary:     string(rev.Itinerary),

		TotalAmount: rev.Amount,
		Currency:    rev.Currency,

		PaymentStatus: domain.PaymentPending,
		TicketStatus:  domain.TicketNotIssued,
		ExpiresAt:     now.Add(domain.BookingTTL),
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("save booking: %w", err)
	}
	s.loggerf("level=info msg=booking reserved booking_id=%s order_id=%s pnr=%s amount=%s %s", b.ID, b.OrderID, b.PNR, b.TotalAmount, b.Currency)

	resp := &CreateBookingResponse{
		BookingID:        b.ID,
		PNR:              b.PNR,
		OrderID:          b.OrderID,
		TotalAmount:      b.TotalAmount,
		Currency:         b.Currency,
		PriceChanged:     rev.PriceChanged,
		ExpiresInMinutes: int(domain.BookingTTL / time.Minute),
	}

	sess, err := s.openCheckout(ctx, b, 0)
	if err != nil {
		s.loggerf("level=error msg=checkout session failed booking_id=%s err=%v", b.ID, err)
		resp.PaymentPending = true
		return resp, nil
	}
	resp.CheckoutURL = sess.CheckoutURL
	return resp, nil
}

func (s *Service) openCheckout(ctx context.Context, b *domain.Booking, attempt int) (*monei.PaymentSession, error) {
	sess, err := s.payments.CreatePayment(ctx, monei.CreatePaymentParams{
		BookingID:   b.ID,
		Amount:      b.TotalAmount,
		Currency:    b.Currency,
		Description: fmt.Sprintf("Flight %s-%s %s", b.Origin, b.Destination, b.DepartureDate),
		Email:       b.ContactEmail,
		Phone:       b.ContactPhone,
		Attempt:     attempt,
	})
	if err != nil {
		return nil, err
	}
	if err := s.attempts.Create(ctx, &domain.PaymentAttempt{
		BookingID:        b.ID,
		GatewaySessionID: sess.ID,
		Amount:           b.TotalAmount,
		Currency:         b.Currency,
		Status:           domain.AttemptPending,
		CheckoutURL:      sess.CheckoutURL,
	}); err != nil {
		return nil, fmt.Errorf("save payment attempt: %w", err)
	}
	if err := s.bookings.SetPaymentSession(ctx, b.ID, sess.ID, sess.CheckoutURL); err != nil {
		return nil, fmt.Errorf("link payment session: %w", err)
	}
	return sess, nil
}

// GetStatus returns the consolidated view of both status axes. Expiry is
// applied lazily here: a PENDING booking past its deadline flips to EXPIRED
// on read, guarded in SQL so a concurrent payment wins.
func (s *Service) GetStatus(ctx context.Context, id string) (*StatusResponse, error) {
	b, err := s.getLive(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus == domain.PaymentPaid && b.TicketStatus == domain.TicketIssuing {
		b = s.reconcileTicketing(ctx, b)
	}
	resp := &StatusResponse{
		BookingID:     b.ID,
		PaymentStatus: b.PaymentStatus,
		TicketStatus:  b.TicketStatus,
		PNR:           b.PNR,
		AirlinePNR:    b.AirlinePNR,
		TicketNumbers: b.TicketNumbers,
		TicketError:   b.TicketError,
		TotalAmount:   b.TotalAmount,
		Currency:      b.Currency,
		TripType:      b.TripType(),
		Origin:        b.Origin,
		Destination:   b.Destination,
		DepartureDate: b.DepartureDate,
		ReturnDate:    b.ReturnDate,
		ExpiresAt:     b.ExpiresAt.UTC().Format(time.RFC3339),
	}
	// The payment URL is only offered while the booking is still payable.
	if b.PaymentStatus == domain.PaymentPending {
		resp.CheckoutURL = b.CheckoutURL
	}
	return resp, nil
}

// reconcileTicketing repairs a booking stuck in ISSUING. That state means a
// webhook died between starting issuance and recording its outcome; the hub
// record says whether tickets actually exist, and when they do the row is
// brought up to date on read. Hub errors leave the booking as it stands.
func (s *Service) reconcileTicketing(ctx context.Context, b *domain.Booking) *domain.Booking {
	d, err := s.flights.BookingDetails(ctx, b.OrderID)
	if err != nil {
		s.loggerf("level=warn msg=ticketing reconciliation failed booking_id=%s order_id=%s err=%v", b.ID, b.OrderID, err)
		return b
	}
	if len(d.TicketNumbers) == 0 {
		return b
	}
	if err := s.bookings.MarkTicketIssued(ctx, b.ID, d.TicketNumbers, d.AirlinePNR, s.now()); err != nil {
		s.loggerf("level=error msg=ticketing reconciliation write failed booking_id=%s err=%v", b.ID, err)
		return b
	}
	s.loggerf("level=info msg=ticketing reconciled from hub record booking_id=%s tickets=%v", b.ID, d.TicketNumbers)
	b.TicketStatus = domain.TicketIssued
	b.TicketNumbers = d.TicketNumbers
	b.AirlinePNR = d.AirlinePNR
	return b
}

// RetryPayment opens a fresh checkout session for a booking that is still
// payable. The attempt sequence feeds the gateway idempotency key so a new
// session is actually minted.
func (s *Service) RetryPayment(ctx context.Context, id string) (*RetryPaymentResponse, error) {
	b, err := s.getLive(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Payable(s.now()) {
		return nil, fmt.Errorf("%w: payment status is %s", ErrNotPayable, b.PaymentStatus)
	}
	prior, err := s.attempts.ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list payment attempts: %w", err)
	}
	sess, err := s.openCheckout(ctx, b, len(prior))
	if err != nil {
		return nil, fmt.Errorf("retry checkout: %w", err)
	}
	s.loggerf("level=info msg=payment retry booking_id=%s attempt=%d session=%s", b.ID, len(prior), sess.ID)
	return &RetryPaymentResponse{BookingID: b.ID, CheckoutURL: sess.CheckoutURL, Attempt: len(prior)}, nil
}

// getLive fetches a booking and applies lazy expiry before returning it.
func (s *Service) getLive(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if !b.ExpiredBy(s.now()) {
		return b, nil
	}
	changed, err := s.bookings.MarkExpired(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("expire booking: %w", err)
	}
	if changed {
		s.loggerf("level=info msg=booking expired on read booking_id=%s", b.ID)
		b.PaymentStatus = domain.PaymentExpired
		b.CheckoutURL = ""
		if s.events != nil {
			s.events.BookingExpired(ctx, b)
		}
		return b, nil
	}
	// Lost the race to a concurrent transition, reload.
	return s.bookings.GetByID(ctx, id)
}
