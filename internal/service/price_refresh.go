package service

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/robertkottelin/equity/internal/models"
	"github.com/robertkottelin/equity/internal/valuation"
)

// MarketDataProvider supplies a current price for a named holding.
type MarketDataProvider interface {
	GetPrice(ctx context.Context, name string) (decimal.Decimal, error)
}

// Repository is the slice of the database layer the refresher needs.
type Repository interface {
	ListAllAssets(ctx context.Context) ([]models.Asset, error)
	UpdateAsset(ctx context.Context, a *models.Asset) error
}

// Refresher periodically re-prices every stored asset from a market data
// provider and recomputes the derived metrics.
type Refresher struct {
	repo     Repository
	provider MarketDataProvider
	log      *logrus.Logger
}

func NewRefresher(repo Repository, provider MarketDataProvider, log *logrus.Logger) *Refresher {
	return &Refresher{repo: repo, provider: provider, log: log}
}

// RefreshAll walks every asset once. Per-asset failures are logged and
// skipped so one bad quote does not stall the rest.
func (s *Refresher) RefreshAll(ctx context.Context) error {
	assets, err := s.repo.ListAllAssets(ctx)
	if err != nil {
		return err
	}
	for i := range assets {
		a := assets[i]
		price, err := s.provider.GetPrice(ctx, a.Name)
		if err != nil {
			s.log.Warnf("no quote for %s: %v", a.Name, err)
			continue
		}
		a.Price = price
		valuation.Apply(&a)
		if err := s.repo.UpdateAsset(ctx, &a); err != nil {
			s.log.Warnf("update price for %s failed: %v", a.Name, err)
		}
	}
	return nil
}

func (s *Refresher) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.log.Info("price refresher stopping")
				return
			case <-ticker.C:
				if err := s.RefreshAll(ctx); err != nil {
					s.log.Warnf("price refresh failed: %v", err)
				}
			}
		}
	}()
}

// RandomWalkProvider is the stand-in market data source used until a real
// feed is wired up; it quotes between 50 and 150.
type RandomWalkProvider struct{}

func (RandomWalkProvider) GetPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	return decimal.NewFromFloat(50 + rand.Float64()*100).Round(4), nil
}
