package database

import "errors"

var (
	// ErrNotFound is returned when a row does not exist or is owned by a
	// different user.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned by CreateUser on a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
)

const assetColumns = `id, user_id, sector_type, sub_sector, name, price, acquisition_price, amount,
	value, profit_loss, profit_loss_percentage, pe, dividend_yield, growth_1y, growth_3y, growth_5y,
	created_at, updated_at`
