package e2e

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"flightdesk/internal/cache"
	"flightdesk/internal/database"
	"flightdesk/internal/middleware"
	"flightdesk/internal/mistifly"
	"flightdesk/internal/modules/booking"
	"flightdesk/internal/modules/webhook"
	"flightdesk/internal/monei"
	jwtsvc "flightdesk/internal/pkg/jwt"
	"flightdesk/internal/repository"
)

const signingSecret = "whsec_e2e_secret"

type suite struct {
	router    *gin.Engine
	db        *gorm.DB
	token     string
	bookCalls atomic.Int64

	// toggled per scenario
	ticketOutage atomic.Bool
}

type apiResponse struct {
	Success bool                       `json:"success"`
	Data    map[string]json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func itinerary(amount string) string {
	return fmt.Sprintf(`{
		"AirItineraryPricingInfo": {"ItinTotalFare": {"TotalFare": {"Amount": %s, "CurrencyCode": "USD"}}},
		"OriginDestinationOptions": [{
			"FlightSegments": [{
				"FlightNumber": "7120",
				"DepartureAirportLocationCode": "LOS",
				"ArrivalAirportLocationCode": "ABV",
				"DepartureDateTime": "2026-10-01T08:00:00",
				"ArrivalDateTime": "2026-10-01T09:15:00",
				"OperatingAirline": {"Code": "P4"}
			}]
		}]
	}`, amount)
}

func (s *suite) fakeHub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/CreateSession":
			fmt.Fprint(w, `{"Data":{"SessionId":"hub-session"}}`)
		case "/api/v1/Search/Flight":
			fmt.Fprintf(w, `{"PricedItineraries":[%s,%s]}`, itinerary("250.00"), itinerary("410.00"))
		case "/api/v1/Price/Flight":
			var req struct {
				PricedItinerary json.RawMessage `json:"PricedItinerary"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			fmt.Fprintf(w, `{"PricedItinerary":%s,"IsPriceChanged":false}`, req.PricedItinerary)
		case "/api/v1/Book/Flight":
			n := s.bookCalls.Add(1)
			fmt.Fprintf(w, `{"OrderId":"MF-%d","PNR":"PNR%03d","BookingReferenceID":"REF-%d","Status":"Booked"}`, n, n, n)
		case "/api/v1/Ticket/Issue":
			if s.ticketOutage.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"Message":"ticketing system unavailable"}`)
				return
			}
			fmt.Fprint(w, `{"TicketNumbers":["0012345678901"],"PNR":"ABC123","AirlinePNR":"P4XYZ","Status":"Ticketed"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func fakeGateway() http.Handler {
	var sessions atomic.Int64
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		n := sessions.Add(1)
		fmt.Fprintf(w, `{"id":"pay_%d","status":"PENDING","nextAction":{"redirectUrl":"https://secure.gateway.test/checkout/pay_%d"}}`, n, n)
	})
}

func setupSuite(t *testing.T) *suite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &suite{}

	hub := httptest.NewServer(s.fakeHub())
	t.Cleanup(hub.Close)
	gw := httptest.NewServer(fakeGateway())
	t.Cleanup(gw.Close)

	t.Setenv("MISTIFLY_BASE_URL", hub.URL)
	t.Setenv("MISTIFLY_USERNAME", "e2e")
	t.Setenv("MISTIFLY_PASSWORD", "e2e")
	t.Setenv("MISTIFLY_ACCOUNT_NUMBER", "MF0001")
	t.Setenv("MONEI_BASE_URL", gw.URL)
	t.Setenv("MONEI_API_KEY", "pk_test_e2e")
	t.Setenv("MONEI_SIGNING_SECRET", signingSecret)
	t.Setenv("SITE_URL", "https://flights.test")

	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	s.db = db

	bookingRepo := repository.NewBookingRepository(db)
	attemptRepo := repository.NewPaymentAttemptRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)

	flights := mistifly.NewClient(cache.NewMemoryCache())
	flights.SetLogger(t.Logf)
	gateway := monei.NewClient()
	gateway.SetLogger(t.Logf)

	bookingService := booking.NewService(bookingRepo, attemptRepo, flights, gateway, nil, t.Logf)
	webhookService := webhook.NewService(bookingRepo, attemptRepo, eventRepo, gateway, flights, nil, t.Logf)

	j := jwtsvc.New("e2e-secret", time.Hour)
	s.token, err = j.GenerateToken("sess-e2e", "whatsapp")
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.ErrorLogger())
	webhook.NewHandler(webhookService).RegisterRoutes(r)
	v1 := r.Group("/api/v1")
	protected := v1.Group("/")
	protected.Use(middleware.JWTAuth(j))
	booking.NewHandler(bookingService).RegisterRoutes(protected)
	s.router = r

	return s
}

func (s *suite) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func (s *suite) createBooking(t *testing.T) (bookingID, checkoutURL string) {
	t.Helper()
	w, resp := s.do(t, http.MethodPost, "/api/v1/bookings", map[string]interface{}{
		"session_id": "sess-e2e",
		"search": map[string]interface{}{
			"origin":         "LOS",
			"destination":    "ABV",
			"departure_date": "2026-10-01",
			"passengers":     1,
			"cabin_class":    "ECONOMY",
		},
		"offer_index": 0,
		"passengers": []map[string]interface{}{{
			"title":      "MR",
			"first_name": "Ada",
			"last_name":  "Obi",
			"gender":     "F",
			"dob":        "1990-05-20",
			"passport":   "A1234567",
		}},
		"contact_email": "ada@example.com",
		"contact_phone": "+2348000000000",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.True(t, resp.Success)

	var created struct {
		BookingID        string `json:"booking_id"`
		TotalAmount      string `json:"total_amount"`
		Currency         string `json:"currency"`
		CheckoutURL      string `json:"checkout_url"`
		ExpiresInMinutes int    `json:"expires_in_minutes"`
	}
	require.NoError(t, json.Unmarshal(resp.Data["booking"], &created))
	assert.Equal(t, "250.00", created.TotalAmount)
	assert.Equal(t, "USD", created.Currency)
	assert.Equal(t, 30, created.ExpiresInMinutes)
	require.NotEmpty(t, created.CheckoutURL)
	return created.BookingID, created.CheckoutURL
}

func (s *suite) paymentSessionID(t *testing.T, bookingID string) string {
	t.Helper()
	var sessionID string
	require.NoError(t, s.db.Raw(
		"SELECT payment_session_id FROM bookings WHERE id = ?", bookingID).Scan(&sessionID).Error)
	require.NotEmpty(t, sessionID)
	return sessionID
}

func signedWebhook(t *testing.T, paymentID, bookingID, status string) ([]byte, string) {
	t.Helper()
	body := []byte(fmt.Sprintf(`{"id":%q,"orderId":%q,"status":%q,"paymentMethod":{"type":"card"}}`, paymentID, bookingID, status))
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(signingSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return body, fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func (s *suite) deliverWebhook(t *testing.T, paymentID, bookingID, status string) *httptest.ResponseRecorder {
	t.Helper()
	body, sig := signedWebhook(t, paymentID, bookingID, status)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/monei", bytes.NewReader(body))
	req.Header.Set("MONEI-Signature", sig)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *suite) getStatus(t *testing.T, bookingID string) map[string]interface{} {
	t.Helper()
	w, resp := s.do(t, http.MethodGet, "/api/v1/bookings/"+bookingID+"/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data["booking"], &status))
	return status
}

func TestBookPayTicketFlow(t *testing.T) {
	s := setupSuite(t)

	bookingID, checkoutURL := s.createBooking(t)
	assert.Contains(t, checkoutURL, "https://secure.gateway.test/checkout/")

	status := s.getStatus(t, bookingID)
	assert.Equal(t, "PENDING", status["payment_status"])
	assert.Equal(t, "NOT_ISSUED", status["ticket_status"])
	assert.NotEmpty(t, status["checkout_url"])

	paymentID := s.paymentSessionID(t, bookingID)
	w := s.deliverWebhook(t, paymentID, bookingID, "SUCCEEDED")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	status = s.getStatus(t, bookingID)
	assert.Equal(t, "PAID", status["payment_status"])
	assert.Equal(t, "ISSUED", status["ticket_status"])
	assert.Equal(t, []interface{}{"0012345678901"}, status["ticket_numbers"])
	assert.Equal(t, "P4XYZ", status["airline_pnr"])
	// Checkout URL disappears once the booking is no longer payable.
	assert.Nil(t, status["checkout_url"])

	// Replayed delivery acks without side effects.
	before := s.bookCalls.Load()
	w = s.deliverWebhook(t, paymentID, bookingID, "SUCCEEDED")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, before, s.bookCalls.Load())
	status = s.getStatus(t, bookingID)
	assert.Equal(t, "PAID", status["payment_status"])
	assert.Equal(t, "ISSUED", status["ticket_status"])
}

func TestTicketingOutageLeavesBookingPaid(t *testing.T) {
	s := setupSuite(t)
	s.ticketOutage.Store(true)

	bookingID, _ := s.createBooking(t)
	paymentID := s.paymentSessionID(t, bookingID)

	w := s.deliverWebhook(t, paymentID, bookingID, "SUCCEEDED")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	status := s.getStatus(t, bookingID)
	assert.Equal(t, "PAID", status["payment_status"])
	assert.Equal(t, "FAILED", status["ticket_status"])
	assert.NotEmpty(t, status["ticket_error"])
}

func TestExpiredBookingRejectsRetry(t *testing.T) {
	s := setupSuite(t)

	bookingID, _ := s.createBooking(t)

	// Simulate the 30 minute window elapsing.
	require.NoError(t, s.db.Exec(
		"UPDATE bookings SET expires_at = ? WHERE id = ?",
		time.Now().Add(-time.Minute), bookingID).Error)

	status := s.getStatus(t, bookingID)
	assert.Equal(t, "EXPIRED", status["payment_status"])
	assert.Nil(t, status["checkout_url"])
	// The deadline itself stays in the response after expiry.
	assert.NotEmpty(t, status["expires_at"])

	w, resp := s.do(t, http.MethodPost, "/api/v1/bookings/"+bookingID+"/retry-payment", nil, nil)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_PAYABLE", resp.Error.Code)
}

func TestWebhookBadSignatureRejected(t *testing.T) {
	s := setupSuite(t)
	bookingID, _ := s.createBooking(t)
	paymentID := s.paymentSessionID(t, bookingID)

	body := []byte(fmt.Sprintf(`{"id":%q,"orderId":%q,"status":"SUCCEEDED"}`, paymentID, bookingID))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/monei", bytes.NewReader(body))
	req.Header.Set("MONEI-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)

	status := s.getStatus(t, bookingID)
	assert.Equal(t, "PENDING", status["payment_status"])
}

func TestRetryPaymentMintsNewSession(t *testing.T) {
	s := setupSuite(t)
	bookingID, firstURL := s.createBooking(t)

	w, resp := s.do(t, http.MethodPost, "/api/v1/bookings/"+bookingID+"/retry-payment", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var retry struct {
		CheckoutURL string `json:"checkout_url"`
		Attempt     int    `json:"attempt"`
	}
	require.NoError(t, json.Unmarshal(resp.Data["payment"], &retry))
	assert.Equal(t, 1, retry.Attempt)
	assert.NotEqual(t, firstURL, retry.CheckoutURL)

	status := s.getStatus(t, bookingID)
	assert.Equal(t, retry.CheckoutURL, status["checkout_url"])
}
