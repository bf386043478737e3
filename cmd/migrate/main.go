package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"flightdesk/internal/database"
	"flightdesk/internal/repository"
)

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

	if err := repository.Migrate(db); err != nil {
		log.Fatal(err)
	}
	log.Println("migrations applied")
}
