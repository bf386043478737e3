package monei

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"
)

var (
	ErrNotConfigured = errors.New("monei credentials are not configured")
	ErrBadAmount     = errors.New("amount is not a valid decimal")
)

// Gateway payment statuses as they arrive in webhook events.
const (
	StatusSucceeded  = "SUCCEEDED"
	StatusFailed     = "FAILED"
	StatusPending    = "PENDING"
	StatusAuthorized = "AUTHORIZED"
	StatusCanceled   = "CANCELED"
	StatusExpired    = "EXPIRED"
)

// Client talks to the MONEI payments API and validates its webhook
// signatures.
type Client struct {
	apiKey        string
	signingSecret string
	baseURL       string
	siteURL       string

	httpClient *http.Client
	loggerf    func(format string, args ...interface{})
	now        func() time.Time
}

func NewClient() *Client {
	baseURL := os.Getenv("MONEI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.monei.com/v1"
	}
	return &Client{
		apiKey:        os.Getenv("MONEI_API_KEY"),
		signingSecret: os.Getenv("MONEI_SIGNING_SECRET"),
		baseURL:       strings.TrimRight(baseURL, "/"),
		siteURL:       strings.TrimRight(os.Getenv("SITE_URL"), "/"),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		loggerf:       log.Printf,
		now:           time.Now,
	}
}

func (c *Client) SetLogger(loggerf func(format string, args ...interface{})) {
	if loggerf != nil {
		c.loggerf = loggerf
	}
}

// CreatePaymentParams describes one checkout session request. Attempt is
// zero for the first session of a booking and increments on each manual
// retry so the idempotency key changes and the gateway mints a new session.
type CreatePaymentParams struct {
	BookingID   string
	Amount      string
	Currency    string
	Description string
	Email       string
	Phone       string
	Attempt     int
}

// PaymentSession is the created checkout session.
type PaymentSession struct {
	ID          string
	CheckoutURL string
	Status      string
}

func (p CreatePaymentParams) idempotencyKey() string {
	if p.Attempt <= 0 {
		return "order_" + p.BookingID
	}
	return fmt.Sprintf("order_%s_r%d", p.BookingID, p.Attempt)
}

func (c *Client) CreatePayment(ctx context.Context, params CreatePaymentParams) (*PaymentSession, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	minor, err := toMinorUnits(params.Amount)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"amount":      minor,
		"currency":    strings.ToUpper(params.Currency),
		"orderId":     params.BookingID,
		"description": params.Description,
		"callbackUrl": c.siteURL + "/webhooks/monei",
		"completeUrl": c.siteURL + "/payment/complete",
		"failUrl":     c.siteURL + "/payment/failed",
		"cancelUrl":   c.siteURL + "/payment/cancelled",
		"customer": map[string]string{
			"email": params.Email,
			"phone": params.Phone,
		},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Idempotency-Key", params.idempotencyKey())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monei: create payment: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("monei: create payment: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("monei: create payment: status %d: %s", resp.StatusCode, gatewayError(body))
	}

	var out struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		NextAction struct {
			RedirectURL string `json:"redirectUrl"`
		} `json:"nextAction"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("monei: create payment: decode: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("monei: create payment: response carries no payment id")
	}
	return &PaymentSession{ID: out.ID, CheckoutURL: out.NextAction.RedirectURL, Status: out.Status}, nil
}

func gatewayError(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}

// toMinorUnits converts a decimal amount string to integer minor units,
// rounding half up: "250.00" -> 25000, "99.995" -> 10000.
func toMinorUnits(amount string) (int64, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(amount))
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadAmount, amount)
	}
	r.Mul(r, big.NewRat(100, 1))
	num := new(big.Int).Mul(r.Num(), big.NewInt(2))
	num.Add(num, r.Denom())
	den := new(big.Int).Mul(r.Denom(), big.NewInt(2))
	q := new(big.Int).Div(num, den)
	if !q.IsInt64() {
		return 0, fmt.Errorf("%w: %q out of range", ErrBadAmount, amount)
	}
	return q.Int64(), nil
}
