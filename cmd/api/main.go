package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"flightdesk/internal/cache"
	"flightdesk/internal/database"
	"flightdesk/internal/events"
	"flightdesk/internal/middleware"
	"flightdesk/internal/mistifly"
	"flightdesk/internal/modules/booking"
	"flightdesk/internal/modules/webhook"
	"flightdesk/internal/monei"
	jwtsvc "flightdesk/internal/pkg/jwt"
	"flightdesk/internal/repository"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is empty")
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal(err)
	}

	var tokenCache mistifly.TokenCache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
		tokenCache = cache.NewRedisCache(addr, os.Getenv("REDIS_PASSWORD"), redisDB)
	} else {
		log.Printf("level=warn msg=REDIS_ADDR not set, using in-process token cache")
		tokenCache = cache.NewMemoryCache()
	}

	bookingRepo := repository.NewBookingRepository(db)
	attemptRepo := repository.NewPaymentAttemptRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)

	flights := mistifly.NewClient(tokenCache)
	gateway := monei.NewClient()
	producer := events.NewProducer()
	defer producer.Close()

	j := jwtsvc.New(secret, 24*time.Hour)

	bookingService := booking.NewService(bookingRepo, attemptRepo, flights, gateway, producer, log.Printf)
	bookingHandler := booking.NewHandler(bookingService)

	webhookService := webhook.NewService(bookingRepo, attemptRepo, eventRepo, gateway, flights, producer, log.Printf)
	webhookHandler := webhook.NewHandler(webhookService)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Gateway callbacks authenticate by signature, not bearer token.
	webhookHandler.RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	{
		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(j))
		{
			bookingHandler.RegisterRoutes(protected)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
