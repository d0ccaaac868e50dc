package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/robertkottelin/equity/internal/models"
	"github.com/robertkottelin/equity/pkg/client"
)

// Scripted walk over a running server: register, asset CRUD, summary,
// subscription status, logout.
func main() {
	baseURL := os.Getenv("EQUITY_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	c := client.New(client.Config{BaseURL: baseURL})
	ctx := context.Background()
	session := c.Session()

	email := fmt.Sprintf("e2e-%s@example.com", uuid.NewString()[:8])
	if err := session.Register(ctx, email, "e2e-password"); err != nil {
		log.Fatalf("register failed: %v", err)
	}
	fmt.Printf("Registered %s\n", email)

	price := decimal.NewFromInt(100)
	acq := decimal.NewFromInt(80)
	amount := int64(10)
	added, err := c.AddAsset(ctx, client.AssetInput{
		SectorType:       models.SectorEquity,
		Name:             "ACME",
		Price:            &price,
		AcquisitionPrice: &acq,
		Amount:           &amount,
	})
	if err != nil {
		log.Fatalf("add asset failed: %v", err)
	}
	if !added.Value.Equal(decimal.NewFromInt(1000)) || !added.ProfitLoss.Equal(decimal.NewFromInt(200)) {
		log.Fatalf("unexpected derived metrics: value=%s profitLoss=%s", added.Value, added.ProfitLoss)
	}
	fmt.Printf("Added asset %s\n", added.ID)

	summary, err := c.GetSummary(ctx)
	if err != nil {
		log.Fatalf("summary failed: %v", err)
	}
	if !summary.TotalValue.Equal(decimal.NewFromInt(1000)) {
		log.Fatalf("unexpected total value: %s", summary.TotalValue)
	}
	if summary.SectorSummary[models.SectorEquity].Count != 1 {
		log.Fatalf("unexpected sector summary: %+v", summary.SectorSummary)
	}

	newPrice := decimal.NewFromInt(120)
	updated, err := c.UpdateAsset(ctx, added.ID, client.AssetInput{
		SectorType:       models.SectorEquity,
		Name:             "ACME",
		Price:            &newPrice,
		AcquisitionPrice: &acq,
		Amount:           &amount,
	})
	if err != nil {
		log.Fatalf("update asset failed: %v", err)
	}
	if !updated.Value.Equal(decimal.NewFromInt(1200)) {
		log.Fatalf("unexpected value after update: %s", updated.Value)
	}

	subscribed, err := session.CheckSubscription(ctx)
	if err != nil {
		log.Fatalf("check subscription failed: %v", err)
	}
	if subscribed {
		log.Fatal("fresh account must not be subscribed")
	}

	if err := c.DeleteAsset(ctx, added.ID); err != nil {
		log.Fatalf("delete asset failed: %v", err)
	}
	assets, err := c.GetAssets(ctx)
	if err != nil {
		log.Fatalf("list assets failed: %v", err)
	}
	if len(assets) != 0 {
		log.Fatalf("expected empty asset list, got %d", len(assets))
	}

	if err := session.Logout(ctx); err != nil {
		log.Fatalf("logout failed: %v", err)
	}
	if session.IsAuthenticated() {
		log.Fatal("session still authenticated after logout")
	}

	fmt.Println("ALL TESTS PASSED")
}
