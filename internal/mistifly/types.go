package mistifly

import (
	"bytes"
	"encoding/json"
)

// The hub nests payloads under a "Data" envelope in some environments and
// returns them flat in others. unwrapData normalizes both shapes at the
// boundary so nothing downstream needs to know.
func unwrapData(raw []byte) json.RawMessage {
	var envelope struct {
		Data json.RawMessage `json:"Data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		trimmed := bytes.TrimSpace(envelope.Data)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			return envelope.Data
		}
	}
	return raw
}

type hubMessage struct {
	Message string `json:"Message"`
	Success *bool  `json:"Success"`
}

type totalFare struct {
	Amount       json.Number `json:"Amount"`
	CurrencyCode string      `json:"CurrencyCode"`
}

type flightSegmentView struct {
	FlightNumber                 string `json:"FlightNumber"`
	DepartureAirportLocationCode string `json:"DepartureAirportLocationCode"`
	ArrivalAirportLocationCode   string `json:"ArrivalAirportLocationCode"`
	DepartureDateTime            string `json:"DepartureDateTime"`
	ArrivalDateTime              string `json:"ArrivalDateTime"`
	OperatingAirline             struct {
		Code string `json:"Code"`
	} `json:"OperatingAirline"`
}

type originDestinationOption struct {
	JourneyDuration json.Number         `json:"JourneyDuration"`
	FlightSegments  []flightSegmentView `json:"FlightSegments"`
}

// itineraryView is the minimal projection of a PricedItinerary needed for
// sorting, summarizing and price extraction. The full raw payload travels
// separately and untouched.
type itineraryView struct {
	AirItineraryPricingInfo struct {
		ItinTotalFare struct {
			TotalFare totalFare `json:"TotalFare"`
		} `json:"ItinTotalFare"`
	} `json:"AirItineraryPricingInfo"`
	OriginDestinationOptions []originDestinationOption `json:"OriginDestinationOptions"`
}

type searchResponse struct {
	PricedItineraries []json.RawMessage `json:"PricedItineraries"`
}

type priceResponse struct {
	PricedItinerary json.RawMessage `json:"PricedItinerary"`
	IsPriceChanged  bool            `json:"IsPriceChanged"`
	IsValid         *bool           `json:"IsValid"`
}

type bookResponse struct {
	OrderID            string      `json:"OrderId"`
	BookingID          string      `json:"BookingId"`
	PNR                string      `json:"PNR"`
	BookingReferenceID string      `json:"BookingReferenceID"`
	Status             string      `json:"Status"`
	TotalAmount        json.Number `json:"TotalAmount"`
	Currency           string      `json:"Currency"`
}

type ticketResponse struct {
	TicketNumbers []string `json:"TicketNumbers"`
	PNR           string   `json:"PNR"`
	AirlinePNR    string   `json:"AirlinePNR"`
	Status        string   `json:"Status"`
}

type detailsResponse struct {
	OrderID       string   `json:"OrderId"`
	Status        string   `json:"Status"`
	PNR           string   `json:"PNR"`
	AirlinePNR    string   `json:"AirlinePNR"`
	TicketNumbers []string `json:"TicketNumbers"`
}

// BookingDetail is the hub's record for an order. Raw keeps the full
// airline-specific document alongside the fields the core cares about.
type BookingDetail struct {
	OrderID       string
	Status        string
	PNR           string
	AirlinePNR    string
	TicketNumbers []string
	Raw           json.RawMessage
}

// Revalidation is the confirmed outcome of a price check immediately before
// booking. PriceChanged means the itinerary is still bookable at the returned
// (new) price, which the orchestrator must propagate.
type Revalidation struct {
	Amount       string
	Currency     string
	PriceChanged bool
	Itinerary    json.RawMessage
}

// BookResult is the normalized reservation outcome.
type BookResult struct {
	OrderID          string
	PNR              string
	BookingReference string
	Status           string
	TotalAmount      string
	Currency         string
}

// TicketResult is the normalized ticket issuance outcome.
type TicketResult struct {
	OrderID       string
	TicketNumbers []string
	PNR           string
	AirlinePNR    string
	Status        string
}
