package repository

import (
	"flightdesk/internal/domain"

	"gorm.io/gorm"
)

// Migrate applies the schema for the booking core. The unique indexes on
// order id, gateway session id and gateway event id are load-bearing: the
// event id uniqueness backs webhook idempotency under concurrent delivery.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&bookingModel{},
		&domain.PaymentAttempt{},
		&domain.WebhookEvent{},
	)
}
