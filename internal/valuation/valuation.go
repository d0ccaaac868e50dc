package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/robertkottelin/equity/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Value returns the current worth of a position: price * amount.
func Value(price decimal.Decimal, amount int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(amount))
}

// ProfitLoss returns (price - acquisitionPrice) * amount.
func ProfitLoss(price, acquisitionPrice decimal.Decimal, amount int64) decimal.Decimal {
	return price.Sub(acquisitionPrice).Mul(decimal.NewFromInt(amount))
}

// ProfitLossPercentage returns (price - acquisitionPrice) / acquisitionPrice * 100.
// A zero acquisition price yields 0 rather than a division error.
func ProfitLossPercentage(price, acquisitionPrice decimal.Decimal) decimal.Decimal {
	if acquisitionPrice.IsZero() {
		return decimal.Zero
	}
	return price.Sub(acquisitionPrice).Div(acquisitionPrice).Mul(hundred)
}

// Metrics holds the three derived fields of an asset.
type Metrics struct {
	Value                decimal.Decimal
	ProfitLoss           decimal.Decimal
	ProfitLossPercentage decimal.Decimal
}

func Compute(price, acquisitionPrice decimal.Decimal, amount int64) Metrics {
	return Metrics{
		Value:                Value(price, amount),
		ProfitLoss:           ProfitLoss(price, acquisitionPrice, amount),
		ProfitLossPercentage: ProfitLossPercentage(price, acquisitionPrice),
	}
}

// Apply recomputes the derived fields of a from its base fields, discarding
// whatever values they previously held.
func Apply(a *models.Asset) {
	m := Compute(a.Price, a.AcquisitionPrice, a.Amount)
	a.Value = m.Value
	a.ProfitLoss = m.ProfitLoss
	a.ProfitLossPercentage = m.ProfitLossPercentage
}

// TotalValue sums the derived value over all assets.
func TotalValue(assets []models.Asset) decimal.Decimal {
	total := decimal.Zero
	for _, a := range assets {
		total = total.Add(a.Value)
	}
	return total
}

// Aggregate folds the asset list into a total portfolio value and a
// per-sector summary in a single pass. Grouping is by SectorType only;
// SubSector does not participate. Empty input yields a zero total and an
// empty map.
func Aggregate(assets []models.Asset) (decimal.Decimal, map[models.SectorType]models.SectorSummary) {
	total := decimal.Zero
	sectors := map[models.SectorType]models.SectorSummary{}
	for _, a := range assets {
		total = total.Add(a.Value)
		s := sectors[a.SectorType]
		s.Count++
		s.Value = s.Value.Add(a.Value)
		sectors[a.SectorType] = s
	}
	return total, sectors
}

// Premium computes the subscriber-only analytics: the absolute profit/loss
// over the whole portfolio and its percentage against the total acquisition
// cost. A zero-cost portfolio reports 0%.
func Premium(assets []models.Asset) models.PremiumAnalytics {
	totalPL := decimal.Zero
	totalCost := decimal.Zero
	for _, a := range assets {
		totalPL = totalPL.Add(a.ProfitLoss)
		totalCost = totalCost.Add(a.AcquisitionPrice.Mul(decimal.NewFromInt(a.Amount)))
	}
	pct := decimal.Zero
	if !totalCost.IsZero() {
		pct = totalPL.Div(totalCost).Mul(hundred)
	}
	return models.PremiumAnalytics{
		TotalProfitLoss:           totalPL,
		TotalProfitLossPercentage: pct,
	}
}
