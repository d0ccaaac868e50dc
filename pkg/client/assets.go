package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/robertkottelin/equity/internal/models"
	"github.com/robertkottelin/equity/internal/valuation"
)

// AssetInput carries the user-entered fields of an asset. Numeric fields are
// pointers so a present zero is distinguishable from an absent value.
// Derived metrics are not part of the input; the backend (or the local
// store) computes them.
type AssetInput struct {
	SectorType       models.SectorType   `json:"sectorType"`
	SubSector        string              `json:"subSector,omitempty"`
	Name             string              `json:"name"`
	Price            *decimal.Decimal    `json:"price"`
	AcquisitionPrice *decimal.Decimal    `json:"acquisitionPrice"`
	Amount           *int64              `json:"amount"`
	PE               decimal.NullDecimal `json:"pe"`
	DividendYield    decimal.NullDecimal `json:"dividendYield"`
	Growth1Y         decimal.NullDecimal `json:"growth1y"`
	Growth3Y         decimal.NullDecimal `json:"growth3y"`
	Growth5Y         decimal.NullDecimal `json:"growth5y"`
}

// validate is the client-side pre-check: the five required fields must be
// present before any request is sent. Zero is an accepted present value.
func (in *AssetInput) validate() error {
	switch {
	case in.SectorType == "":
		return fmt.Errorf("%w: sectorType", ErrMissingRequiredField)
	case in.Name == "":
		return fmt.Errorf("%w: name", ErrMissingRequiredField)
	case in.Price == nil:
		return fmt.Errorf("%w: price", ErrMissingRequiredField)
	case in.AcquisitionPrice == nil:
		return fmt.Errorf("%w: acquisitionPrice", ErrMissingRequiredField)
	case in.Amount == nil:
		return fmt.Errorf("%w: amount", ErrMissingRequiredField)
	}
	return nil
}

func (in *AssetInput) toAsset() models.Asset {
	a := models.Asset{
		SectorType:       in.SectorType,
		SubSector:        in.SubSector,
		Name:             in.Name,
		Price:            *in.Price,
		AcquisitionPrice: *in.AcquisitionPrice,
		Amount:           *in.Amount,
		PE:               in.PE,
		DividendYield:    in.DividendYield,
		Growth1Y:         in.Growth1Y,
		Growth3Y:         in.Growth3Y,
		Growth5Y:         in.Growth5Y,
	}
	valuation.Apply(&a)
	return a
}

// GetAssets fetches the authenticated user's asset list.
func (c *Client) GetAssets(ctx context.Context) ([]models.Asset, error) {
	var resp struct {
		Assets []models.Asset `json:"assets"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/equity/assets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Assets, nil
}

func (c *Client) AddAsset(ctx context.Context, in AssetInput) (*models.Asset, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var resp struct {
		Asset models.Asset `json:"asset"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/equity/assets", in, &resp); err != nil {
		return nil, err
	}
	return &resp.Asset, nil
}

func (c *Client) UpdateAsset(ctx context.Context, id string, in AssetInput) (*models.Asset, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	var resp struct {
		Asset models.Asset `json:"asset"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/equity/assets/"+id, in, &resp); err != nil {
		return nil, err
	}
	return &resp.Asset, nil
}

func (c *Client) DeleteAsset(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	return c.do(ctx, http.MethodDelete, "/api/equity/assets/"+id, nil, nil)
}

func (c *Client) GetSummary(ctx context.Context) (*models.Summary, error) {
	var summary models.Summary
	if err := c.do(ctx, http.MethodGet, "/api/equity/summary", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
