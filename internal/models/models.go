package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// SectorType is the top-level asset category used for grouping.
type SectorType string

const (
	SectorEquity SectorType = "equity"
	SectorFund   SectorType = "fund"
	SectorCash   SectorType = "cash"
	SectorOthers SectorType = "others"
)

func (s SectorType) Valid() bool {
	switch s {
	case SectorEquity, SectorFund, SectorCash, SectorOthers:
		return true
	}
	return false
}

// Asset is one tracked holding. Value, ProfitLoss and ProfitLossPercentage
// are derived from Price, AcquisitionPrice and Amount at write time and are
// never accepted from the client.
type Asset struct {
	ID                   string              `db:"id" json:"id"`
	UserID               string              `db:"user_id" json:"-"`
	SectorType           SectorType          `db:"sector_type" json:"sectorType"`
	SubSector            string              `db:"sub_sector" json:"subSector,omitempty"`
	Name                 string              `db:"name" json:"name"`
	Price                decimal.Decimal     `db:"price" json:"price"`
	AcquisitionPrice     decimal.Decimal     `db:"acquisition_price" json:"acquisitionPrice"`
	Amount               int64               `db:"amount" json:"amount"`
	Value                decimal.Decimal     `db:"value" json:"value"`
	ProfitLoss           decimal.Decimal     `db:"profit_loss" json:"profitLoss"`
	ProfitLossPercentage decimal.Decimal     `db:"profit_loss_percentage" json:"profitLossPercentage"`
	PE                   decimal.NullDecimal `db:"pe" json:"pe"`
	DividendYield        decimal.NullDecimal `db:"dividend_yield" json:"dividendYield"`
	Growth1Y             decimal.NullDecimal `db:"growth_1y" json:"growth1y"`
	Growth3Y             decimal.NullDecimal `db:"growth_3y" json:"growth3y"`
	Growth5Y             decimal.NullDecimal `db:"growth_5y" json:"growth5y"`
	CreatedAt            time.Time           `db:"created_at" json:"-"`
	UpdatedAt            time.Time           `db:"updated_at" json:"-"`
}

type User struct {
	ID                 string         `db:"id" json:"-"`
	Email              string         `db:"email" json:"email"`
	PasswordHash       string         `db:"password_hash" json:"-"`
	CustomerID         sql.NullString `db:"customer_id" json:"-"`
	SubscriptionID     sql.NullString `db:"subscription_id" json:"-"`
	SubscriptionStatus string         `db:"subscription_status" json:"-"`
	CreatedAt          time.Time      `db:"created_at" json:"-"`
}

func (u *User) IsSubscribed() bool {
	return u.SubscriptionStatus == "active"
}

// SectorSummary is one bucket of the sector grouping, recomputed on every
// read and never stored.
type SectorSummary struct {
	Count int             `json:"count"`
	Value decimal.Decimal `json:"value"`
}

// PremiumAnalytics is the extra summary block returned to subscribers.
type PremiumAnalytics struct {
	TotalProfitLoss           decimal.Decimal `json:"totalProfitLoss"`
	TotalProfitLossPercentage decimal.Decimal `json:"totalProfitLossPercentage"`
}

type Summary struct {
	TotalValue    decimal.Decimal              `json:"totalValue"`
	SectorSummary map[SectorType]SectorSummary `json:"sectorSummary"`
	Premium       *PremiumAnalytics            `json:"premium,omitempty"`
}
