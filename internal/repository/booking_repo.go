package repository

import (
	"context"
	"encoding/json"
	"time"

	"flightdesk/internal/domain"

	"gorm.io/gorm"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type bookingModel struct {
	ID               string     `gorm:"column:id;type:varchar(36);primaryKey"`
	SessionID        string     `gorm:"column:session_id;type:varchar(255);index"`
	Origin           string     `gorm:"column:origin;type:varchar(3)"`
	Destination      string     `gorm:"column:destination;type:varchar(3)"`
	DepartureDate    string     `gorm:"column:departure_date;type:varchar(10)"`
	ReturnDate       string     `gorm:"column:return_date;type:varchar(10)"`
	CabinClass       string     `gorm:"column:cabin_class;type:varchar(20)"`
	NumPassengers    int        `gorm:"column:num_passengers"`
	Passengers       string     `gorm:"column:passengers;type:text"`
	ContactEmail     string     `gorm:"column:contact_email;type:varchar(255)"`
	ContactPhone     string     `gorm:"column:contact_phone;type:varchar(50)"`
	OrderID          string     `gorm:"column:order_id;type:varchar(100);uniqueIndex"`
	PNR              string     `gorm:"column:pnr;type:varchar(50);index"`
	BookingReference string     `gorm:"column:booking_reference;type:varchar(100)"`
	AirlinePNR       string     `gorm:"column:airline_pnr;type:varchar(50)"`
	RawItinerary     string     `gorm:"column:raw_itinerary;type:text"`
	TotalAmount      string     `gorm:"column:total_amount;type:varchar(32)"`
	Currency         string     `gorm:"column:currency;type:varchar(3)"`
	PaymentStatus    string     `gorm:"column:payment_status;type:varchar(20);index"`
	PaymentSessionID string     `gorm:"column:payment_session_id;type:varchar(64)"`
	CheckoutURL      string     `gorm:"column:checkout_url;type:text"`
	PaidAt           *time.Time `gorm:"column:paid_at"`
	TransactionID    string     `gorm:"column:transaction_id;type:varchar(128)"`
	PaymentMethod    string     `gorm:"column:payment_method;type:varchar(64)"`
	TicketStatus     string     `gorm:"column:ticket_status;type:varchar(20)"`
	TicketNumbers    string     `gorm:"column:ticket_numbers;type:text"`
	TicketedAt       *time.Time `gorm:"column:ticketed_at"`
	TicketError      string     `gorm:"column:ticket_error;type:text"`
	ExpiresAt        time.Time  `gorm:"column:expires_at;index"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (bookingModel) TableName() string { return "bookings" }

func toDomainBooking(m bookingModel) *domain.Booking {
	var passengers []domain.Passenger
	if m.Passengers != "" {
		_ = json.Unmarshal([]byte(m.Passengers), &passengers)
	}
	var tickets []string
	if m.TicketNumbers != "" {
		_ = json.Unmarshal([]byte(m.TicketNumbers), &tickets)
	}

	return &domain.Booking{
		ID:               m.ID,
		SessionID:        m.SessionID,
		Origin:           m.Origin,
		Destination:      m.Destination,
		DepartureDate:    m.DepartureDate,
		ReturnDate:       m.ReturnDate,
		CabinClass:       m.CabinClass,
		NumPassengers:    m.NumPassengers,
		Passengers:       passengers,
		ContactEmail:     m.ContactEmail,
		ContactPhone:     m.ContactPhone,
		OrderID:          m.OrderID,
		PNR:              m.PNR,
		BookingReference: m.BookingReference,
		AirlinePNR:       m.AirlinePNR,
		RawItinerary:     m.RawItinerary,
		TotalAmount:      m.TotalAmount,
		Currency:         m.Currency,
		PaymentStatus:    domain.PaymentStatus(m.PaymentStatus),
		PaymentSessionID: m.PaymentSessionID,
		CheckoutURL:      m.CheckoutURL,
		PaidAt:           m.PaidAt,
		TransactionID:    m.TransactionID,
		PaymentMethod:    m.PaymentMethod,
		TicketStatus:     domain.TicketStatus(m.TicketStatus),
		TicketNumbers:    tickets,
		TicketedAt:       m.TicketedAt,
		TicketError:      m.TicketError,
		ExpiresAt:        m.ExpiresAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toBookingModel(b *domain.Booking) bookingModel {
	var passengers string
	if len(b.Passengers) > 0 {
		raw, _ := json.Marshal(b.Passengers)
		passengers = string(raw)
	}
	var tickets string
	if len(b.TicketNumbers) > 0 {
		raw, _ := json.Marshal(b.TicketNumbers)
		tickets = string(raw)
	}

	return bookingModel{
		ID:               b.ID,
		SessionID:        b.SessionID,
		Origin:           b.Origin,
		Destination:      b.Destination,
		DepartureDate:    b.DepartureDate,
		ReturnDate:       b.ReturnDate,
		CabinClass:       b.CabinClass,
		NumPassengers:    b.NumPassengers,
		Passengers:       passengers,
		ContactEmail:     b.ContactEmail,
		ContactPhone:     b.ContactPhone,
		OrderID:          b.OrderID,
		PNR:              b.PNR,
		BookingReference: b.BookingReference,
		AirlinePNR:       b.AirlinePNR,
		RawItinerary:     b.RawItinerary,
		TotalAmount:      b.TotalAmount,
		Currency:         b.Currency,
		PaymentStatus:    string(b.PaymentStatus),
		PaymentSessionID: b.PaymentSessionID,
		CheckoutURL:      b.CheckoutURL,
		PaidAt:           b.PaidAt,
		TransactionID:    b.TransactionID,
		PaymentMethod:    b.PaymentMethod,
		TicketStatus:     string(b.TicketStatus),
		TicketNumbers:    tickets,
		TicketedAt:       b.TicketedAt,
		TicketError:      b.TicketError,
		ExpiresAt:        b.ExpiresAt,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	m := toBookingModel(b)
	tx := r.db.WithContext(ctx).Create(&m)
	if tx.Error != nil {
		return tx.Error
	}
	*b = *toDomainBooking(m)
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var m bookingModel
	tx := r.db.WithContext(ctx).Where("id = ?", id).First(&m)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainBooking(m), nil
}

// SetPaymentSession records the active gateway session for a booking. Called
// on initial session creation and on retry, where it replaces the previous
// checkout URL.
func (r *BookingRepository) SetPaymentSession(ctx context.Context, bookingID, sessionID, checkoutURL string) error {
	return r.db.WithContext(ctx).Model(&bookingModel{}).Where("id = ?", bookingID).Updates(map[string]interface{}{
		"payment_session_id": sessionID,
		"checkout_url":       checkoutURL,
	}).Error
}

// MarkProcessing moves PENDING to PROCESSING. A no-op on any other state so a
// late "processing" delivery cannot regress a terminal booking.
func (r *BookingRepository) MarkProcessing(ctx context.Context, bookingID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("id = ? AND payment_status = ?", bookingID, domain.PaymentPending).
		Update("payment_status", domain.PaymentProcessing)
	return res.RowsAffected > 0, res.Error
}

// MarkPaid commits the payment-axis transition to PAID. Conditional on the
// current state being a valid predecessor; reports whether this call changed
// the row so a redelivered "succeeded" event is detected as already applied.
func (r *BookingRepository) MarkPaid(ctx context.Context, bookingID, transactionID, method string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("id = ? AND payment_status IN ?", bookingID, []string{string(domain.PaymentPending), string(domain.PaymentProcessing)}).
		Updates(map[string]interface{}{
			"payment_status": domain.PaymentPaid,
			"transaction_id": transactionID,
			"payment_method": method,
			"paid_at":        paidAt,
			"checkout_url":   "",
		})
	return res.RowsAffected > 0, res.Error
}

func (r *BookingRepository) MarkPaymentFailed(ctx context.Context, bookingID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("id = ? AND payment_status IN ?", bookingID, []string{string(domain.PaymentPending), string(domain.PaymentProcessing)}).
		Update("payment_status", domain.PaymentFailed)
	return res.RowsAffected > 0, res.Error
}

func (r *BookingRepository) MarkCancelled(ctx context.Context, bookingID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("id = ? AND payment_status = ?", bookingID, domain.PaymentPending).
		Update("payment_status", domain.PaymentCancelled)
	return res.RowsAffected > 0, res.Error
}

// MarkExpired persists the lazy expiry observation made on read. Guarded the
// same way as every other transition: only a PENDING booking can expire.
func (r *BookingRepository) MarkExpired(ctx context.Context, bookingID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("id = ? AND payment_status = ?", bookingID, domain.PaymentPending).
		Update("payment_status", domain.PaymentExpired)
	return res.RowsAffected > 0, res.Error
}

func (r *BookingRepository) MarkTicketIssuing(ctx context.Context, bookingID string) error {
	return r.db.WithContext(ctx).Model(&bookingModel{}).Where("id = ?", bookingID).
		Update("ticket_status", domain.TicketIssuing).Error
}

func (r *BookingRepository) MarkTicketIssued(ctx context.Context, bookingID string, ticketNumbers []string, airlinePNR string, ticketedAt time.Time) error {
	raw, _ := json.Marshal(ticketNumbers)
	return r.db.WithContext(ctx).Model(&bookingModel{}).Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"ticket_status":  domain.TicketIssued,
			"ticket_numbers": string(raw),
			"airline_pnr":    airlinePNR,
			"ticketed_at":    ticketedAt,
			"ticket_error":   "",
		}).Error
}

// MarkTicketFailed records a ticketing failure on the ticket axis only. The
// payment columns are deliberately not touched here.
func (r *BookingRepository) MarkTicketFailed(ctx context.Context, bookingID, reason string) error {
	return r.db.WithContext(ctx).Model(&bookingModel{}).Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"ticket_status": domain.TicketFailed,
			"ticket_error":  reason,
		}).Error
}

// ExpirePendingBefore flips stale PENDING bookings to EXPIRED in bulk. Used
// by the hygiene sweep in cmd/worker; correctness does not depend on it.
func (r *BookingRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	var stale []bookingModel
	if err := r.db.WithContext(ctx).
		Where("payment_status = ? AND expires_at <= ?", domain.PaymentPending, deadline).
		Find(&stale).Error; err != nil {
		return nil, err
	}

	expired := make([]domain.Booking, 0, len(stale))
	for _, m := range stale {
		res := r.db.WithContext(ctx).Model(&bookingModel{}).
			Where("id = ? AND payment_status = ?", m.ID, domain.PaymentPending).
			Update("payment_status", domain.PaymentExpired)
		if res.Error != nil {
			return expired, res.Error
		}
		if res.RowsAffected > 0 {
			m.PaymentStatus = string(domain.PaymentExpired)
			expired = append(expired, *toDomainBooking(m))
		}
	}
	return expired, nil
}
