package events

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"flightdesk/internal/domain"
)

const (
	TypeBookingPaid    = "booking.paid"
	TypeTicketIssued   = "booking.ticket_issued"
	TypeTicketFailed   = "booking.ticket_failed"
	TypeBookingExpired = "booking.expired"
)

// BookingEvent is the lifecycle record published for downstream consumers
// (notifications, analytics). It carries what a notifier needs without a
// database round trip.
type BookingEvent struct {
	Type          string    `json:"type"`
	BookingID     string    `json:"booking_id"`
	PNR           string    `json:"pnr,omitempty"`
	AirlinePNR    string    `json:"airline_pnr,omitempty"`
	TicketNumbers []string  `json:"ticket_numbers,omitempty"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureDate string    `json:"departure_date"`
	TotalAmount   string    `json:"total_amount"`
	Currency      string    `json:"currency"`
	ContactEmail  string    `json:"contact_email"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Producer publishes booking lifecycle events. Publishing is best effort:
// failures are logged and never propagate into the request path.
type Producer struct {
	writer  *kafka.Writer
	topic   string
	loggerf func(format string, args ...interface{})
}

func NewProducer() *Producer {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return &Producer{loggerf: log.Printf}
	}
	topic := os.Getenv("KAFKA_BOOKING_EVENTS_TOPIC")
	if topic == "" {
		topic = "booking-events"
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		topic:   topic,
		loggerf: log.Printf,
	}
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *Producer) BookingPaid(ctx context.Context, b *domain.Booking) {
	p.publish(ctx, TypeBookingPaid, b)
}

func (p *Producer) TicketIssued(ctx context.Context, b *domain.Booking) {
	p.publish(ctx, TypeTicketIssued, b)
}

func (p *Producer) TicketFailed(ctx context.Context, b *domain.Booking) {
	p.publish(ctx, TypeTicketFailed, b)
}

func (p *Producer) BookingExpired(ctx context.Context, b *domain.Booking) {
	p.publish(ctx, TypeBookingExpired, b)
}

func (p *Producer) publish(ctx context.Context, eventType string, b *domain.Booking) {
	if p == nil || p.writer == nil {
		return
	}
	event := BookingEvent{
		Type:          eventType,
		BookingID:     b.ID,
		PNR:           b.PNR,
		AirlinePNR:    b.AirlinePNR,
		TicketNumbers: b.TicketNumbers,
		Origin:        b.Origin,
		Destination:   b.Destination,
		DepartureDate: b.DepartureDate,
		TotalAmount:   b.TotalAmount,
		Currency:      b.Currency,
		ContactEmail:  b.ContactEmail,
		OccurredAt:    time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.loggerf("level=error msg=marshal booking event err=%v", err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(b.ID),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		p.loggerf("level=error msg=publish booking event type=%s booking_id=%s err=%v", eventType, b.ID, err)
		return
	}
	p.loggerf("level=info msg=booking event published type=%s booking_id=%s", eventType, b.ID)
}
