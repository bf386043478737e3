package domain

import "time"

type PaymentAttemptStatus string

const (
	AttemptPending    PaymentAttemptStatus = "PENDING"
	AttemptProcessing PaymentAttemptStatus = "PROCESSING"
	AttemptSucceeded  PaymentAttemptStatus = "SUCCEEDED"
	AttemptFailed     PaymentAttemptStatus = "FAILED"
	AttemptCancelled  PaymentAttemptStatus = "CANCELLED"
)

// PaymentAttempt is one Monei payment session opened for a booking. A booking
// accumulates one per retry. Amount and currency are copied from the booking
// at creation time and never re-derived.
type PaymentAttempt struct {
	ID               int64                `gorm:"primaryKey" json:"id"`
	BookingID        string               `gorm:"type:varchar(36);index;not null" json:"booking_id"`
	GatewaySessionID string               `gorm:"type:varchar(64);uniqueIndex;not null" json:"gateway_session_id"`
	Amount           string               `gorm:"type:varchar(32);not null" json:"amount"`
	Currency         string               `gorm:"type:varchar(3);not null" json:"currency"`
	Status           PaymentAttemptStatus `gorm:"type:varchar(20);default:'PENDING';index" json:"status"`
	CheckoutURL      string               `gorm:"type:text" json:"checkout_url"`
	PaymentMethod    string               `gorm:"type:varchar(64)" json:"payment_method,omitempty"`
	TransactionID    string               `gorm:"type:varchar(128)" json:"transaction_id,omitempty"`
	ErrorCode        string               `gorm:"type:varchar(64)" json:"error_code,omitempty"`
	ErrorMessage     string               `gorm:"type:text" json:"error_message,omitempty"`
	LastWebhookBody  string               `gorm:"type:text" json:"-"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

func (PaymentAttempt) TableName() string { return "payment_attempts" }
