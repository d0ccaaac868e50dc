package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/robertkottelin/equity/internal/auth"
	"github.com/robertkottelin/equity/internal/database"
	"github.com/robertkottelin/equity/internal/models"
	"github.com/robertkottelin/equity/internal/valuation"
)

// Seeds a demo account with a small portfolio for local development.
func main() {
	godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	repo := database.New(db, logrus.New())
	ctx := context.Background()

	email := "demo@example.com"
	hash, err := auth.HashPassword("demo-password")
	if err != nil {
		log.Fatalf("hash password failed: %v", err)
	}
	user, err := repo.CreateUser(ctx, email, hash)
	if err != nil {
		if !errors.Is(err, database.ErrEmailTaken) {
			log.Fatalf("create demo user failed: %v", err)
		}
		user, err = repo.GetUserByEmail(ctx, email)
		if err != nil {
			log.Fatalf("fetch demo user failed: %v", err)
		}
	}

	seeds := []struct {
		sector models.SectorType
		name   string
		price  string
		acq    string
		amount int64
	}{
		{models.SectorEquity, "ACME Industries", "100", "80", 10},
		{models.SectorEquity, "Globex", "45.50", "52.10", 25},
		{models.SectorFund, "World Index", "50", "50", 5},
		{models.SectorCash, "Savings", "1", "1", 12000},
	}
	for _, s := range seeds {
		a := models.Asset{
			UserID:           user.ID,
			SectorType:       s.sector,
			Name:             s.name,
			Price:            decimal.RequireFromString(s.price),
			AcquisitionPrice: decimal.RequireFromString(s.acq),
			Amount:           s.amount,
		}
		valuation.Apply(&a)
		if err := repo.CreateAsset(ctx, &a); err != nil {
			fmt.Printf("Warning: could not insert %s: %v\n", s.name, err)
		}
	}

	fmt.Printf("Seeded portfolio for %s (password: demo-password)\n", email)
}
