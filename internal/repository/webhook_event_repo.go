package repository

import (
	"context"
	"errors"
	"time"

	"flightdesk/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrDuplicateEvent means a row for this gateway event id already exists.
// The losing writer re-reads the stored row: processed means acknowledge,
// unprocessed means the effects still need applying.
var ErrDuplicateEvent = errors.New("duplicate webhook event")

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(ctx context.Context, e *domain.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (r *WebhookEventRepository) GetByGatewayEventID(ctx context.Context, gatewayEventID string) (*domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	if err := r.db.WithContext(ctx).Where("gateway_event_id = ?", gatewayEventID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// MarkProcessed flips the processed flag after business effects are durable.
// This is the only mutation a WebhookEvent row ever sees.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id int64, processedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.WebhookEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":    true,
			"processed_at": processedAt,
		}).Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}
