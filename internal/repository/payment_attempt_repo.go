package repository

import (
	"context"

	"flightdesk/internal/domain"

	"gorm.io/gorm"
)

type PaymentAttemptRepository struct {
	db *gorm.DB
}

func NewPaymentAttemptRepository(db *gorm.DB) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{db: db}
}

func (r *PaymentAttemptRepository) Create(ctx context.Context, a *domain.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *PaymentAttemptRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt
	if err := r.db.WithContext(ctx).Where("gateway_session_id = ?", sessionID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PaymentAttemptRepository) ListByBooking(ctx context.Context, bookingID string) ([]domain.PaymentAttempt, error) {
	var attempts []domain.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at").
		Find(&attempts).Error
	return attempts, err
}

// UpdateFromWebhook records the outcome the gateway reported for a session.
// Attempts are mutated only from webhook processing, so a plain update by the
// unique session id is sufficient.
func (r *PaymentAttemptRepository) UpdateFromWebhook(ctx context.Context, sessionID string, status domain.PaymentAttemptStatus, transactionID, method, errCode, errMsg, rawBody string) error {
	return r.db.WithContext(ctx).Model(&domain.PaymentAttempt{}).
		Where("gateway_session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":            status,
			"transaction_id":    transactionID,
			"payment_method":    method,
			"error_code":        errCode,
			"error_message":     errMsg,
			"last_webhook_body": rawBody,
		}).Error
}
