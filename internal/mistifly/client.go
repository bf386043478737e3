package mistifly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"flightdesk/internal/domain"
)

const (
	sessionCacheKey = "mistifly:session_token"
	sessionTTL      = 23 * time.Hour
)

var cabinCodes = map[string]string{
	"ECONOMY":         "Y",
	"BUSINESS":        "C",
	"FIRST":           "F",
	"PREMIUM_ECONOMY": "S",
}

// TokenCache stores the hub session token between requests. Backed by redis
// in production and an in-process map in tests.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Client talks to the Mistifly flight distribution hub.
type Client struct {
	baseURL        string
	username       string
	password       string
	accountNumber  string
	target         string
	sandboxLenient bool

	httpClient *http.Client
	tokens     TokenCache
	loggerf    func(format string, args ...interface{})
}

func NewClient(tokens TokenCache) *Client {
	baseURL := os.Getenv("MISTIFLY_BASE_URL")
	if baseURL == "" {
		baseURL = "https://restapidemo.myfarebox.com"
	}
	target := os.Getenv("MISTIFLY_TARGET")
	if target == "" {
		target = "Test"
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		username:       os.Getenv("MISTIFLY_USERNAME"),
		password:       os.Getenv("MISTIFLY_PASSWORD"),
		accountNumber:  os.Getenv("MISTIFLY_ACCOUNT_NUMBER"),
		target:         target,
		sandboxLenient: os.Getenv("MISTIFLY_SANDBOX_LENIENT") == "true",
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		tokens:         tokens,
		loggerf:        log.Printf,
	}
}

func (c *Client) SetLogger(loggerf func(format string, args ...interface{})) {
	if loggerf != nil {
		c.loggerf = loggerf
	}
}

func (c *Client) createSession(ctx context.Context) (string, error) {
	payload := map[string]string{
		"UserName":      c.username,
		"Password":      c.password,
		"AccountNumber": c.accountNumber,
	}
	body, err := c.post(ctx, "/api/CreateSession", "", payload)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	var resp struct {
		SessionID string `json:"SessionId"`
	}
	if err := json.Unmarshal(unwrapData(body), &resp); err != nil {
		return "", fmt.Errorf("create session: decode: %w", err)
	}
	if resp.SessionID == "" {
		return "", &APIError{Kind: KindAuth, Message: "create session: empty session id"}
	}
	if err := c.tokens.Set(ctx, sessionCacheKey, resp.SessionID, sessionTTL); err != nil {
		c.loggerf("mistifly: cache session token: %v", err)
	}
	return resp.SessionID, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if tok, err := c.tokens.Get(ctx, sessionCacheKey); err == nil && tok != "" {
		return tok, nil
	}
	return c.createSession(ctx)
}

func (c *Client) post(ctx context.Context, path, bearer string, payload interface{}) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, Message: err.Error()}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &APIError{Kind: KindAuth, StatusCode: resp.StatusCode, Message: hubError(body)}
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{Kind: KindUpstream, StatusCode: resp.StatusCode, Message: hubError(body)}
	}
	return body, nil
}

// postAuthenticated runs a bearer-authenticated call. A 401 invalidates the
// cached session and retries once with a fresh one; a second 401 surfaces.
func (c *Client) postAuthenticated(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.post(ctx, path, tok, payload)
	if err == nil {
		return body, nil
	}
	if !IsKind(err, KindAuth) {
		return nil, err
	}
	c.loggerf("mistifly: session rejected, refreshing")
	if derr := c.tokens.Delete(ctx, sessionCacheKey); derr != nil {
		c.loggerf("mistifly: drop cached session: %v", derr)
	}
	tok, err = c.createSession(ctx)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, path, tok, payload)
}

func hubError(body []byte) string {
	var msg hubMessage
	if err := json.Unmarshal(unwrapData(body), &msg); err == nil && msg.Message != "" {
		return msg.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300]
	}
	if s == "" {
		s = "upstream error"
	}
	return s
}

func (c *Client) buildSearchPayload(params domain.SearchParams) map[string]interface{} {
	cabin, ok := cabinCodes[strings.ToUpper(params.CabinClass)]
	if !ok {
		cabin = "Y"
	}
	legs := []map[string]interface{}{
		{
			"DepartureDateTime":       params.DepartureDate + "T00:00:00",
			"OriginLocationCode":      params.Origin,
			"DestinationLocationCode": params.Destination,
		},
	}
	if params.ReturnDate != "" {
		legs = append(legs, map[string]interface{}{
			"DepartureDateTime":       params.ReturnDate + "T00:00:00",
			"OriginLocationCode":      params.Destination,
			"DestinationLocationCode": params.Origin,
		})
	}
	adults := params.Adults
	if adults < 1 {
		adults = 1
	}
	return map[string]interface{}{
		"OriginDestinationInformations": legs,
		"TravelPreferences": map[string]interface{}{
			"CabinPreference":  cabin,
			"MaxStopsQuantity": "All",
			"AirTripType":      tripType(params),
		},
		"PassengerTypeQuantities": []map[string]interface{}{
			{"Code": "ADT", "Quantity": adults},
		},
		"PricingSourceType": "Public",
		"RequestOptions":    "Fifty",
		"IsRefundable":      false,
		"IsResidentFare":    false,
		"NearByAirports":    false,
		"Target":            c.target,
	}
}

func tripType(params domain.SearchParams) string {
	if params.ReturnDate != "" {
		return "Return"
	}
	return "OneWay"
}

// FullItinerary runs a fresh search for the given parameters and returns the
// offer at the given index of the price-sorted result list, raw payload
// included. The conversational layer presents summaries only, so the raw
// itinerary must be recovered server-side before booking.
func (c *Client) FullItinerary(ctx context.Context, params domain.SearchParams, index int) (*domain.FlightOffer, error) {
	body, err := c.postAuthenticated(ctx, "/api/v1/Search/Flight", c.buildSearchPayload(params))
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(unwrapData(body), &resp); err != nil {
		return nil, fmt.Errorf("search: decode: %w", err)
	}
	if len(resp.PricedItineraries) == 0 {
		return nil, &APIError{Kind: KindNotFound, Message: "no itineraries for search"}
	}

	type scored struct {
		raw  json.RawMessage
		view itineraryView
	}
	offers := make([]scored, 0, len(resp.PricedItineraries))
	for _, raw := range resp.PricedItineraries {
		var v itineraryView
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		offers = append(offers, scored{raw: raw, view: v})
	}
	if len(offers) == 0 {
		return nil, &APIError{Kind: KindUpstream, Message: "search: unreadable itineraries"}
	}
	sort.SliceStable(offers, func(i, j int) bool {
		a, _ := offers[i].view.AirItineraryPricingInfo.ItinTotalFare.TotalFare.Amount.Float64()
		b, _ := offers[j].view.AirItineraryPricingInfo.ItinTotalFare.TotalFare.Amount.Float64()
		return a < b
	})
	if index < 0 || index >= len(offers) {
		return nil, &APIError{Kind: KindNotFound, Message: fmt.Sprintf("offer index %d out of range", index)}
	}

	sel := offers[index]
	offer := &domain.FlightOffer{
		ID:           fmt.Sprintf("%s-%s-%s-%d", params.Origin, params.Destination, params.DepartureDate, index),
		Price:        sel.view.AirItineraryPricingInfo.ItinTotalFare.TotalFare.Amount.String(),
		Currency:     sel.view.AirItineraryPricingInfo.ItinTotalFare.TotalFare.CurrencyCode,
		Origin:       params.Origin,
		Destination:  params.Destination,
		RawItinerary: sel.raw,
		Index:        index,
		SearchParams: params,
	}
	if len(sel.view.OriginDestinationOptions) > 0 {
		segs := sel.view.OriginDestinationOptions[0].FlightSegments
		offer.Stops = len(segs) - 1
		for _, s := range segs {
			offer.Segments = append(offer.Segments, domain.FlightSegment{
				Airline:      s.OperatingAirline.Code,
				FlightNumber: s.FlightNumber,
				Origin:       s.DepartureAirportLocationCode,
				Destination:  s.ArrivalAirportLocationCode,
				Departure:    s.DepartureDateTime,
				Arrival:      s.ArrivalDateTime,
			})
		}
		if len(segs) > 0 {
			offer.Airline = segs[0].OperatingAirline.Code
			offer.FlightNumber = segs[0].FlightNumber
			offer.DepartureTime = segs[0].DepartureDateTime
			offer.ArrivalTime = segs[len(segs)-1].ArrivalDateTime
		}
	}
	return offer, nil
}

// Revalidate confirms the itinerary is still bookable at (or near) its quoted
// price. An explicit decline maps to KindUnavailable. A response with neither
// a decline nor pricing data is ambiguous and treated as a failure, unless
// the sandbox-lenient flag is set, in which case the original itinerary
// passes through unchanged.
func (c *Client) Revalidate(ctx context.Context, rawItinerary json.RawMessage) (*Revalidation, error) {
	payload := map[string]interface{}{
		"PricedItinerary": rawItinerary,
		"Target":          c.target,
	}
	body, err := c.postAuthenticated(ctx, "/api/v1/Price/Flight", payload)
	if err != nil {
		return nil, err
	}
	data := unwrapData(body)

	var resp priceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("revalidate: decode: %w", err)
	}
	if resp.IsValid != nil && !*resp.IsValid {
		return nil, &APIError{Kind: KindUnavailable, Message: "itinerary no longer available"}
	}

	itin := resp.PricedItinerary
	if len(itin) == 0 {
		// No decline and no pricing either.
		if c.sandboxLenient {
			c.loggerf("mistifly: lenient mode, passing original itinerary through revalidation")
			return c.revalidationFromRaw(rawItinerary, false)
		}
		return nil, &APIError{Kind: KindAmbiguous, Message: "revalidation returned no pricing data"}
	}
	return c.revalidationFromRaw(itin, resp.IsPriceChanged)
}

func (c *Client) revalidationFromRaw(itin json.RawMessage, priceChanged bool) (*Revalidation, error) {
	var v itineraryView
	if err := json.Unmarshal(itin, &v); err != nil {
		return nil, fmt.Errorf("revalidate: decode itinerary: %w", err)
	}
	fare := v.AirItineraryPricingInfo.ItinTotalFare.TotalFare
	if fare.Amount.String() == "" {
		return nil, &APIError{Kind: KindAmbiguous, Message: "revalidation itinerary carries no fare"}
	}
	return &Revalidation{
		Amount:       fare.Amount.String(),
		Currency:     fare.CurrencyCode,
		PriceChanged: priceChanged,
		Itinerary:    itin,
	}, nil
}

// Book places the reservation for the revalidated itinerary.
func (c *Client) Book(ctx context.Context, rawItinerary json.RawMessage, passengers []domain.Passenger, email, phone string) (*BookResult, error) {
	pax := make([]map[string]interface{}, 0, len(passengers))
	for i, p := range passengers {
		code := "ADT"
		entry := map[string]interface{}{
			"PassengerType": code,
			"Gender":        p.Gender,
			"PassengerName": map[string]string{
				"PassengerTitle":     p.Title,
				"PassengerFirstName": p.FirstName,
				"PassengerLastName":  p.LastName,
			},
			"DateOfBirth":     p.DateOfBirth,
			"NationalityCode": p.Nationality,
		}
		if p.PassportNumber != "" {
			entry["Passport"] = map[string]string{
				"PassportNumber": p.PassportNumber,
				"ExpiryDate":     p.PassportExpiry,
				"Country":        p.PassportCountry,
			}
		}
		if p.NationalID != "" {
			entry["NationalID"] = p.NationalID
		}
		if i == 0 {
			entry["EmailAddress"] = email
			entry["PhoneNumber"] = phone
			entry["IsLeadPassenger"] = true
		}
		pax = append(pax, entry)
	}
	payload := map[string]interface{}{
		"PricedItinerary": rawItinerary,
		"TravelerInfo": map[string]interface{}{
			"AirTravelers": pax,
			"CountryCode":  "NG",
			"AreaCode":     "0",
			"PhoneNumber":  phone,
			"Email":        email,
			"PostCode":     "0000",
		},
		"Target": c.target,
	}
	body, err := c.postAuthenticated(ctx, "/api/v1/Book/Flight", payload)
	if err != nil {
		return nil, err
	}
	var resp bookResponse
	if err := json.Unmarshal(unwrapData(body), &resp); err != nil {
		return nil, fmt.Errorf("book: decode: %w", err)
	}
	orderID := resp.OrderID
	if orderID == "" {
		orderID = resp.BookingID
	}
	if orderID == "" {
		return nil, &APIError{Kind: KindUpstream, Message: "book: response carries no order id"}
	}
	return &BookResult{
		OrderID:          orderID,
		PNR:              resp.PNR,
		BookingReference: resp.BookingReferenceID,
		Status:           resp.Status,
		TotalAmount:      resp.TotalAmount.String(),
		Currency:         resp.Currency,
	}, nil
}

// IssueTicket requests ticket issuance for a paid order.
func (c *Client) IssueTicket(ctx context.Context, orderID string) (*TicketResult, error) {
	payload := map[string]interface{}{
		"UniqueID": orderID,
		"Target":   c.target,
	}
	body, err := c.postAuthenticated(ctx, "/api/v1/Ticket/Issue", payload)
	if err != nil {
		return nil, err
	}
	var resp ticketResponse
	if err := json.Unmarshal(unwrapData(body), &resp); err != nil {
		return nil, fmt.Errorf("ticket: decode: %w", err)
	}
	if len(resp.TicketNumbers) == 0 {
		return nil, &APIError{Kind: KindUpstream, Message: "ticket: no ticket numbers issued"}
	}
	return &TicketResult{
		OrderID:       orderID,
		TicketNumbers: resp.TicketNumbers,
		PNR:           resp.PNR,
		AirlinePNR:    resp.AirlinePNR,
		Status:        resp.Status,
	}, nil
}

// BookingDetails retrieves the hub's record for an order.
func (c *Client) BookingDetails(ctx context.Context, orderID string) (*BookingDetail, error) {
	payload := map[string]interface{}{
		"OrderId": orderID,
		"Target":  c.target,
	}
	body, err := c.postAuthenticated(ctx, "/api/v1/Booking/Details", payload)
	if err != nil {
		return nil, err
	}
	raw := unwrapData(body)
	var resp detailsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("booking details: decode: %w", err)
	}
	return &BookingDetail{
		OrderID:       resp.OrderID,
		Status:        resp.Status,
		PNR:           resp.PNR,
		AirlinePNR:    resp.AirlinePNR,
		TicketNumbers: resp.TicketNumbers,
		Raw:           raw,
	}, nil
}
