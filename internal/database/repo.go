package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/robertkottelin/equity/internal/models"
)

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

// --- users ---

func (r *Repo) CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error) {
	var u models.User
	q := `INSERT INTO users (id, email, password_hash, subscription_status, created_at)
		VALUES (gen_random_uuid(), $1, $2, 'inactive', now())
		RETURNING id, email, password_hash, customer_id, subscription_id, subscription_status, created_at`
	if err := r.db.GetContext(ctx, &u, q, email, passwordHash); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	q := `SELECT id, email, password_hash, customer_id, subscription_id, subscription_status, created_at
		FROM users WHERE email = $1`
	if err := r.db.GetContext(ctx, &u, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	q := `SELECT id, email, password_hash, customer_id, subscription_id, subscription_status, created_at
		FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) UpdateSubscription(ctx context.Context, userID, customerID, subscriptionID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET customer_id = $2, subscription_id = $3, subscription_status = $4 WHERE id = $1`,
		userID, customerID, subscriptionID, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- assets ---

func (r *Repo) ListAssets(ctx context.Context, userID string) ([]models.Asset, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Asset{}
	for rows.Next() {
		var a models.Asset
		if err := rows.StructScan(&a); err != nil {
			r.log.Warnf("scan asset failed: %v", err)
			continue
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// ListAllAssets returns every asset across all users, for the price
// refresher.
func (r *Repo) ListAllAssets(ctx context.Context) ([]models.Asset, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Asset{}
	for rows.Next() {
		var a models.Asset
		if err := rows.StructScan(&a); err != nil {
			r.log.Warnf("scan asset failed: %v", err)
			continue
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r *Repo) CountAssets(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM assets WHERE user_id = $1`, userID); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) GetAsset(ctx context.Context, userID, id string) (*models.Asset, error) {
	var a models.Asset
	q := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &a, q, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreateAsset inserts a and fills in its server-assigned id and timestamps.
func (r *Repo) CreateAsset(ctx context.Context, a *models.Asset) error {
	q := `INSERT INTO assets (id, user_id, sector_type, sub_sector, name, price, acquisition_price, amount,
			value, profit_loss, profit_loss_percentage, pe, dividend_yield, growth_1y, growth_3y, growth_5y,
			created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5::numeric, $6::numeric, $7,
			$8::numeric, $9::numeric, $10::numeric, $11, $12, $13, $14, $15, now(), now())
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q,
		a.UserID, a.SectorType, a.SubSector, a.Name, a.Price, a.AcquisitionPrice, a.Amount,
		a.Value, a.ProfitLoss, a.ProfitLossPercentage,
		a.PE, a.DividendYield, a.Growth1Y, a.Growth3Y, a.Growth5Y,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// UpdateAsset rewrites every mutable column of the asset identified by
// a.ID/a.UserID. Returns ErrNotFound when the row is missing or owned by
// someone else.
func (r *Repo) UpdateAsset(ctx context.Context, a *models.Asset) error {
	q := `UPDATE assets SET sector_type = $3, sub_sector = $4, name = $5, price = $6::numeric,
			acquisition_price = $7::numeric, amount = $8, value = $9::numeric, profit_loss = $10::numeric,
			profit_loss_percentage = $11::numeric, pe = $12, dividend_yield = $13,
			growth_1y = $14, growth_3y = $15, growth_5y = $16, updated_at = now()
		WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, q,
		a.ID, a.UserID, a.SectorType, a.SubSector, a.Name, a.Price, a.AcquisitionPrice, a.Amount,
		a.Value, a.ProfitLoss, a.ProfitLossPercentage,
		a.PE, a.DividendYield, a.Growth1Y, a.Growth3Y, a.Growth5Y)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteAsset(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
