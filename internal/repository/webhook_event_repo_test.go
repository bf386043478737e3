package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"flightdesk/internal/domain"
)

func TestWebhookEventUniqueID(t *testing.T) {
	repo := NewWebhookEventRepository(newTestDB(t))
	ctx := context.Background()

	first := &domain.WebhookEvent{
		GatewayEventID: "pay_1:succeeded",
		EventType:      "SUCCEEDED",
		RawBody:        `{"id":"pay_1"}`,
	}
	require.NoError(t, repo.Create(ctx, first))
	assert.NotZero(t, first.ID)

	// Second insert of the same gateway event id loses the race.
	dup := &domain.WebhookEvent{
		GatewayEventID: "pay_1:succeeded",
		EventType:      "SUCCEEDED",
		RawBody:        `{"id":"pay_1"}`,
	}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicateEvent)

	// A different transition of the same payment is a new event.
	other := &domain.WebhookEvent{
		GatewayEventID: "pay_1:failed",
		EventType:      "FAILED",
	}
	require.NoError(t, repo.Create(ctx, other))
}

func TestWebhookEventMarkProcessed(t *testing.T) {
	repo := NewWebhookEventRepository(newTestDB(t))
	ctx := context.Background()

	e := &domain.WebhookEvent{GatewayEventID: "evt-1", EventType: "SUCCEEDED"}
	require.NoError(t, repo.Create(ctx, e))

	got, err := repo.GetByGatewayEventID(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, got.Processed)

	processedAt := time.Now()
	require.NoError(t, repo.MarkProcessed(ctx, e.ID, processedAt))

	got, err = repo.GetByGatewayEventID(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, got.Processed)
	require.NotNil(t, got.ProcessedAt)

	_, err = repo.GetByGatewayEventID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPaymentAttemptLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewPaymentAttemptRepository(db)
	ctx := context.Background()

	a := &domain.PaymentAttempt{
		BookingID:        "bk-1",
		GatewaySessionID: "pay_1",
		Amount:           "250.00",
		Currency:         "USD",
		Status:           domain.AttemptPending,
		CheckoutURL:      "https://checkout/1",
	}
	require.NoError(t, repo.Create(ctx, a))

	require.NoError(t, repo.UpdateFromWebhook(ctx, "pay_1", domain.AttemptSucceeded,
		"pay_1", "card", "", "", `{"status":"SUCCEEDED"}`))

	got, err := repo.GetBySessionID(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptSucceeded, got.Status)
	assert.Equal(t, "card", got.PaymentMethod)

	require.NoError(t, repo.Create(ctx, &domain.PaymentAttempt{
		BookingID:        "bk-1",
		GatewaySessionID: "pay_2",
		Amount:           "250.00",
		Currency:         "USD",
		Status:           domain.AttemptPending,
	}))

	attempts, err := repo.ListByBooking(ctx, "bk-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "pay_1", attempts[0].GatewaySessionID)
}
