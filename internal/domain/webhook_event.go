package domain

import "time"

// WebhookEvent is the immutable audit and idempotency record for one gateway
// delivery. The gateway-assigned event id is the idempotency key; the row is
// created before any business mutation and marked processed only after the
// effects are durably applied. It is never updated otherwise.
type WebhookEvent struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	GatewayEventID string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"gateway_event_id"`
	BookingID      *string    `gorm:"type:varchar(36);index" json:"booking_id,omitempty"`
	EventType      string     `gorm:"type:varchar(64)" json:"event_type"`
	RawBody        string     `gorm:"type:text" json:"-"`
	RawSignature   string     `gorm:"type:text" json:"-"`
	Processed      bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
