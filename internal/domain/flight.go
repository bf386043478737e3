package domain

import "encoding/json"

// SearchParams are the parameters of the search that produced an offer. They
// are carried on the offer so the full bookable payload can be re-fetched on
// demand when the summarized result is booked.
type SearchParams struct {
	Origin        string `json:"origin" validate:"required,len=3"`
	Destination   string `json:"destination" validate:"required,len=3"`
	DepartureDate string `json:"departure_date" validate:"required,datetime=2006-01-02"`
	ReturnDate    string `json:"return_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Adults        int    `json:"passengers"`
	CabinClass    string `json:"cabin_class,omitempty"`
}

type FlightSegment struct {
	Airline      string `json:"airline"`
	FlightNumber string `json:"flight"`
	Origin       string `json:"origin"`
	Destination  string `json:"dest"`
	Departure    string `json:"dep"`
	Arrival      string `json:"arr"`
}

// FlightOffer is a priced, time-bounded flight option. Summarized search
// results omit RawItinerary for bandwidth; booking re-fetches it by Index
// within the same price-sorted result set.
type FlightOffer struct {
	ID            string          `json:"id"`
	Airline       string          `json:"airline"`
	FlightNumber  string          `json:"flight_number"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureTime string          `json:"departure_time"`
	ArrivalTime   string          `json:"arrival_time"`
	DurationText  string          `json:"duration_text,omitempty"`
	Stops         int             `json:"stops"`
	Price         string          `json:"price"`
	Currency      string          `json:"currency"`
	Segments      []FlightSegment `json:"segments,omitempty"`
	RawItinerary  json.RawMessage `json:"raw_itinerary,omitempty"`
	Index         int             `json:"index"`
	SearchParams  SearchParams    `json:"search_params"`
}

func (o *FlightOffer) HasRawItinerary() bool {
	return len(o.RawItinerary) > 0 && string(o.RawItinerary) != "null"
}
