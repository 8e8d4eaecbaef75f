package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/db"
)

// PGStore persists the singleton settings row.
type PGStore struct {
	DB db.DBTX
}

// Get reads the settings row.
func (s *PGStore) Get(ctx context.Context) (Settings, error) {
	const q = `
SELECT tax_rate, min_order_amount, default_delivery_fee, updated_at
FROM restaurant_settings
WHERE id = 1`
	var out Settings
	err := s.DB.QueryRow(ctx, q).Scan(&out.TaxRate, &out.MinOrderAmount, &out.DefaultDeliveryFee, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, ErrNotConfigured
	}
	if err != nil {
		return Settings{}, err
	}
	return out, nil
}

// Update applies the non-nil fields and returns the resulting row. A nil
// MinOrderAmount with ClearMinOrder set removes the threshold.
func (s *PGStore) Update(ctx context.Context, p UpdateParams) (Settings, error) {
	const q = `
UPDATE restaurant_settings
SET tax_rate             = COALESCE($1, tax_rate),
    min_order_amount     = CASE WHEN $4 THEN NULL ELSE COALESCE($2, min_order_amount) END,
    default_delivery_fee = COALESCE($3, default_delivery_fee),
    updated_at           = now()
WHERE id = 1
RETURNING tax_rate, min_order_amount, default_delivery_fee, updated_at`
	var out Settings
	err := s.DB.QueryRow(ctx, q, p.TaxRate, p.MinOrderAmount, p.DefaultDeliveryFee, p.ClearMinOrder).
		Scan(&out.TaxRate, &out.MinOrderAmount, &out.DefaultDeliveryFee, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, ErrNotConfigured
	}
	if err != nil {
		return Settings{}, err
	}
	return out, nil
}
