package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/db"
)

const couponColumns = `id, code, name, type, discount_value, min_order_amount, max_discount_amount,
	buy_quantity, get_quantity, get_item_id, usage_limit, usage_limit_per_user, usage_count,
	valid_from, valid_until, status, created_at, updated_at`

// PGStore persists coupons and their usage records in Postgres.
type PGStore struct {
	DB db.DBTX
}

// WithTx returns a store bound to the provided transaction.
func (s PGStore) WithTx(tx pgx.Tx) Store {
	return PGStore{DB: tx}
}

// GetByCode fetches a coupon by its canonical (upper-cased) code.
func (s PGStore) GetByCode(ctx context.Context, code string) (Coupon, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, NormalizeCode(code))
	c, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

// MarkExpired flips an active coupon to EXPIRED. The transition is one-way.
func (s PGStore) MarkExpired(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.Exec(ctx,
		`UPDATE coupons SET status = 'EXPIRED', updated_at = now() WHERE id = $1 AND status = 'ACTIVE'`, id)
	if err != nil {
		return fmt.Errorf("mark coupon expired: %w", err)
	}
	return nil
}

// MarkInactive flips an active coupon to INACTIVE. The transition is one-way.
func (s PGStore) MarkInactive(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.Exec(ctx,
		`UPDATE coupons SET status = 'INACTIVE', updated_at = now() WHERE id = $1 AND status = 'ACTIVE'`, id)
	if err != nil {
		return fmt.Errorf("mark coupon inactive: %w", err)
	}
	return nil
}

// CountUsageByUser counts prior redemptions of the coupon by the given user.
func (s PGStore) CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.DB.QueryRow(ctx,
		`SELECT count(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`, couponID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count coupon usage: %w", err)
	}
	return count, nil
}

// InsertUsage appends an immutable usage record.
func (s PGStore) InsertUsage(ctx context.Context, u Usage) (Usage, error) {
	row := s.DB.QueryRow(ctx, `
		INSERT INTO coupon_usages (coupon_id, order_id, user_id, discount_amount, used_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, used_at`,
		u.CouponID, u.OrderID, u.UserID, u.DiscountAmount, usedAtOrNow(u.UsedAt))
	if err := row.Scan(&u.ID, &u.UsedAt); err != nil {
		return Usage{}, fmt.Errorf("insert coupon usage: %w", err)
	}
	return u, nil
}

// IncrementUsage bumps usage_count by exactly one as a single conditional
// update so concurrent redemptions serialize at the storage layer. A missed
// update is re-read to tell an exhausted quota apart from a coupon that was
// deactivated between validation and recording.
func (s PGStore) IncrementUsage(ctx context.Context, id uuid.UUID) (int32, *int32, error) {
	var (
		count int32
		limit *int32
	)
	err := s.DB.QueryRow(ctx, `
		UPDATE coupons
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE' AND (usage_limit IS NULL OR usage_count < usage_limit)
		RETURNING usage_count, usage_limit`, id).Scan(&count, &limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var status string
			stErr := s.DB.QueryRow(ctx, `SELECT status FROM coupons WHERE id = $1`, id).Scan(&status)
			if stErr != nil {
				if errors.Is(stErr, pgx.ErrNoRows) {
					return 0, nil, ErrNotFound
				}
				return 0, nil, fmt.Errorf("increment coupon usage: %w", stErr)
			}
			if Status(status) != StatusActive {
				return 0, nil, ErrNotActive
			}
			return 0, nil, ErrUsageLimitReached
		}
		return 0, nil, fmt.Errorf("increment coupon usage: %w", err)
	}
	return count, limit, nil
}

// Create inserts a new coupon. Codes are canonicalised to upper case.
func (s PGStore) Create(ctx context.Context, c Coupon) (Coupon, error) {
	c.Code = NormalizeCode(c.Code)
	if c.Status == "" {
		c.Status = StatusActive
	}
	row := s.DB.QueryRow(ctx, `
		INSERT INTO coupons (code, name, type, discount_value, min_order_amount, max_discount_amount,
			buy_quantity, get_quantity, get_item_id, usage_limit, usage_limit_per_user,
			valid_from, valid_until, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+couponColumns,
		c.Code, c.Name, c.Type, c.DiscountValue, c.MinOrderAmount, c.MaxDiscountAmount,
		buyQuantity(c.BuyXGetY), getQuantity(c.BuyXGetY), getItemID(c.BuyXGetY),
		c.UsageLimit, c.UsageLimitPerUser, c.ValidFrom, c.ValidUntil, c.Status)
	created, err := scanCoupon(row)
	if err != nil {
		return Coupon{}, fmt.Errorf("create coupon: %w", err)
	}
	return created, nil
}

// Update replaces the mutable rule fields of a coupon identified by code.
// Usage counters and lifecycle state are never touched here.
func (s PGStore) Update(ctx context.Context, c Coupon) (Coupon, error) {
	row := s.DB.QueryRow(ctx, `
		UPDATE coupons
		SET name = $2, type = $3, discount_value = $4, min_order_amount = $5, max_discount_amount = $6,
			buy_quantity = $7, get_quantity = $8, get_item_id = $9, usage_limit = $10,
			usage_limit_per_user = $11, valid_from = $12, valid_until = $13, updated_at = now()
		WHERE code = $1
		RETURNING `+couponColumns,
		NormalizeCode(c.Code), c.Name, c.Type, c.DiscountValue, c.MinOrderAmount, c.MaxDiscountAmount,
		buyQuantity(c.BuyXGetY), getQuantity(c.BuyXGetY), getItemID(c.BuyXGetY),
		c.UsageLimit, c.UsageLimitPerUser, c.ValidFrom, c.ValidUntil)
	updated, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("update coupon: %w", err)
	}
	return updated, nil
}

// List returns coupons ordered by creation time, newest first.
func (s PGStore) List(ctx context.Context, limit, offset int) ([]Coupon, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()
	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("list coupons: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListUsages returns the append-only audit trail for a coupon.
func (s PGStore) ListUsages(ctx context.Context, couponID uuid.UUID) ([]Usage, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, coupon_id, order_id, user_id, discount_amount, used_at
		FROM coupon_usages WHERE coupon_id = $1 ORDER BY used_at`, couponID)
	if err != nil {
		return nil, fmt.Errorf("list coupon usages: %w", err)
	}
	defer rows.Close()
	var out []Usage
	for rows.Next() {
		var u Usage
		if err := rows.Scan(&u.ID, &u.CouponID, &u.OrderID, &u.UserID, &u.DiscountAmount, &u.UsedAt); err != nil {
			return nil, fmt.Errorf("list coupon usages: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ExpireWindowClosed flips every ACTIVE coupon whose window has closed to
// EXPIRED and reports how many rows changed. Used by the background sweep.
func (s PGStore) ExpireWindowClosed(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx,
		`UPDATE coupons SET status = 'EXPIRED', updated_at = now() WHERE status = 'ACTIVE' AND valid_until IS NOT NULL AND valid_until < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire coupons: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCoupon(row pgx.Row) (Coupon, error) {
	var (
		c      Coupon
		buyQty *int32
		getQty *int32
		itemID *uuid.UUID
	)
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Type, &c.DiscountValue, &c.MinOrderAmount,
		&c.MaxDiscountAmount, &buyQty, &getQty, &itemID, &c.UsageLimit, &c.UsageLimitPerUser,
		&c.UsageCount, &c.ValidFrom, &c.ValidUntil, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Coupon{}, err
	}
	if buyQty != nil && getQty != nil && itemID != nil {
		c.BuyXGetY = &BuyXGetY{BuyQuantity: int(*buyQty), GetQuantity: int(*getQty), GetItemID: *itemID}
	}
	return c, nil
}

func buyQuantity(r *BuyXGetY) *int32 {
	if r == nil {
		return nil
	}
	v := int32(r.BuyQuantity)
	return &v
}

func getQuantity(r *BuyXGetY) *int32 {
	if r == nil {
		return nil
	}
	v := int32(r.GetQuantity)
	return &v
}

func getItemID(r *BuyXGetY) *uuid.UUID {
	if r == nil {
		return nil
	}
	id := r.GetItemID
	return &id
}

func usedAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
