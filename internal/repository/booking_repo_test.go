package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"flightdesk/internal/database"
	"flightdesk/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func seedBooking(t *testing.T, repo *BookingRepository, id string) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		ID:            id,
		SessionID:     "sess-1",
		Origin:        "LOS",
		Destination:   "ABV",
		DepartureDate: "2026-10-01",
		CabinClass:    "ECONOMY",
		NumPassengers: 1,
		Passengers: []domain.Passenger{{
			FirstName: "Ada", LastName: "Obi", DateOfBirth: "1990-05-20",
		}},
		ContactEmail:  "ada@example.com",
		ContactPhone:  "+2348000000000",
		OrderID:       "MF-" + id,
		PNR:           "PNR" + id,
		RawItinerary:  `{"AirItinerary":{}}`,
		TotalAmount:   "250.00",
		Currency:      "USD",
		PaymentStatus: domain.PaymentPending,
		TicketStatus:  domain.TicketNotIssued,
		ExpiresAt:     time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func TestBookingCreateAndGet(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()

	seedBooking(t, repo, "bk-1")

	got, err := repo.GetByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, "LOS", got.Origin)
	assert.Equal(t, domain.PaymentPending, got.PaymentStatus)
	assert.Equal(t, domain.TicketNotIssued, got.TicketStatus)
	require.Len(t, got.Passengers, 1)
	assert.Equal(t, "Ada", got.Passengers[0].FirstName)
	assert.Equal(t, `{"AirItinerary":{}}`, got.RawItinerary)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMarkPaidIsMonotonic(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()
	seedBooking(t, repo, "bk-1")
	paidAt := time.Now()

	changed, err := repo.MarkPaid(ctx, "bk-1", "pay_1", "card", paidAt)
	require.NoError(t, err)
	assert.True(t, changed)

	// Replayed success must not report a fresh transition.
	changed, err = repo.MarkPaid(ctx, "bk-1", "pay_1", "card", paidAt)
	require.NoError(t, err)
	assert.False(t, changed)

	// And no late event can drag a PAID booking backwards.
	for name, fn := range map[string]func() (bool, error){
		"failed":    func() (bool, error) { return repo.MarkPaymentFailed(ctx, "bk-1") },
		"cancelled": func() (bool, error) { return repo.MarkCancelled(ctx, "bk-1") },
		"expired":   func() (bool, error) { return repo.MarkExpired(ctx, "bk-1") },
		"processing": func() (bool, error) {
			return repo.MarkProcessing(ctx, "bk-1")
		},
	} {
		changed, err := fn()
		require.NoError(t, err, name)
		assert.False(t, changed, name)
	}

	got, err := repo.GetByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, "pay_1", got.TransactionID)
	assert.Empty(t, got.CheckoutURL)
	require.NotNil(t, got.PaidAt)
}

func TestMarkPaidFromProcessing(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()
	seedBooking(t, repo, "bk-1")

	changed, err := repo.MarkProcessing(ctx, "bk-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkPaid(ctx, "bk-1", "pay_1", "card", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestTicketFailureDoesNotTouchPayment(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()
	seedBooking(t, repo, "bk-1")

	_, err := repo.MarkPaid(ctx, "bk-1", "pay_1", "card", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.MarkTicketIssuing(ctx, "bk-1"))
	require.NoError(t, repo.MarkTicketFailed(ctx, "bk-1", "hub timeout"))

	got, err := repo.GetByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, domain.TicketFailed, got.TicketStatus)
	assert.Equal(t, "hub timeout", got.TicketError)
}

func TestMarkTicketIssued(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()
	seedBooking(t, repo, "bk-1")

	_, err := repo.MarkPaid(ctx, "bk-1", "pay_1", "card", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.MarkTicketIssuing(ctx, "bk-1"))
	require.NoError(t, repo.MarkTicketIssued(ctx, "bk-1", []string{"0011234567890", "0011234567891"}, "P4XYZ", time.Now()))

	got, err := repo.GetByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketIssued, got.TicketStatus)
	assert.Equal(t, []string{"0011234567890", "0011234567891"}, got.TicketNumbers)
	assert.Equal(t, "P4XYZ", got.AirlinePNR)
	require.NotNil(t, got.TicketedAt)
}

func TestSetPaymentSessionReplacesCheckout(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()
	seedBooking(t, repo, "bk-1")

	require.NoError(t, repo.SetPaymentSession(ctx, "bk-1", "pay_1", "https://checkout/1"))
	require.NoError(t, repo.SetPaymentSession(ctx, "bk-1", "pay_2", "https://checkout/2"))

	got, err := repo.GetByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, "pay_2", got.PaymentSessionID)
	assert.Equal(t, "https://checkout/2", got.CheckoutURL)
}

func TestExpirePendingBefore(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()

	stale := seedBooking(t, repo, "bk-stale")
	stale.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.db.Model(&bookingModel{}).Where("id = ?", stale.ID).
		Update("expires_at", stale.ExpiresAt).Error)

	fresh := seedBooking(t, repo, "bk-fresh")

	paid := seedBooking(t, repo, "bk-paid")
	_, err := repo.MarkPaid(ctx, paid.ID, "pay_1", "card", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.db.Model(&bookingModel{}).Where("id = ?", paid.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	expired, err := repo.ExpirePendingBefore(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "bk-stale", expired[0].ID)

	got, _ := repo.GetByID(ctx, "bk-stale")
	assert.Equal(t, domain.PaymentExpired, got.PaymentStatus)
	got, _ = repo.GetByID(ctx, fresh.ID)
	assert.Equal(t, domain.PaymentPending, got.PaymentStatus)
	got, _ = repo.GetByID(ctx, paid.ID)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
}
