package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkaGo "github.com/segmentio/kafka-go"

	"flightdesk/internal/database"
	"flightdesk/internal/email"
	"flightdesk/internal/events"
	"flightdesk/internal/repository"
)

// The worker does two jobs: consume lifecycle events for traveler
// notifications, and run the expiry sweep. The sweep is hygiene only; expiry
// is already applied lazily on every read in the API.
func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal(err)
	}
	bookingRepo := repository.NewBookingRepository(db)

	producer := events.NewProducer()
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := os.Getenv("KAFKA_BOOKING_EVENTS_TOPIC")
		if topic == "" {
			topic = "booking-events"
		}
		groupID := os.Getenv("KAFKA_GROUP_ID")
		if groupID == "" {
			groupID = "flightdesk-worker"
		}
		consumer := events.NewConsumer(strings.Split(brokers, ","), groupID, topic)
		defer consumer.Close()

		emailSender := email.NewSender()

		go func() {
			err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				var event events.BookingEvent
				if err := json.Unmarshal(msg.Value, &event); err != nil {
					log.Printf("level=error msg=decode booking event err=%v", err)
					return nil
				}
				return emailSender.Send(ctx, event)
			})
			if err != nil {
				log.Printf("level=warn msg=consumer stopped err=%v", err)
			}
		}()
	} else {
		log.Printf("level=warn msg=KAFKA_BROKERS not set, notification consumer disabled")
	}

	sweepMinutes, _ := strconv.Atoi(os.Getenv("EXPIRY_SWEEP_MINUTES"))
	if sweepMinutes <= 0 {
		sweepMinutes = 5
	}
	ticker := time.NewTicker(time.Duration(sweepMinutes) * time.Minute)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			expired, err := bookingRepo.ExpirePendingBefore(ctx, time.Now())
			if err != nil {
				log.Printf("level=error msg=expiry sweep failed err=%v", err)
				continue
			}
			for i := range expired {
				producer.BookingExpired(ctx, &expired[i])
			}
			if len(expired) > 0 {
				log.Printf("level=info msg=expiry sweep flipped=%d", len(expired))
			}
		case s := <-sig:
			log.Printf("level=info msg=shutting down signal=%v", s)
			return
		}
	}
}
