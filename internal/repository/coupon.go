package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/checkout-pricing/internal/domain/cart"
	"github.com/xenking/checkout-pricing/internal/domain/coupon"
)

const (
	findCouponSQL = `SELECT id, store_id, code, program_id, active, start_date, end_date, max_uses_per_profile
		FROM coupons WHERE store_id = $1 AND code = $2`

	// A coupon counts as used once the cart it was applied to completes.
	countCouponUsageSQL = `SELECT COUNT(*) FROM cart_coupons cc
		JOIN carts c ON c.id = cc.cart_id
		WHERE cc.coupon_id = $1 AND c.profile_id = $2 AND c.status = $3`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a store's coupon by exact code, with its discount
// program. Returns coupon.ErrNotFound when no coupon matches.
func (r *CouponRepository) FindByCode(ctx context.Context, storeID, code string) (*coupon.Coupon, error) {
	var (
		c         coupon.Coupon
		programID string
		maxUses   int32
		start     *time.Time
		end       *time.Time
	)
	err := r.pool.QueryRow(ctx, findCouponSQL, storeID, code).Scan(
		&c.ID, &c.StoreID, &c.Code, &programID, &c.Active, &start, &end, &maxUses,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	c.StartDate, c.EndDate = start, end
	c.MaxUsesPerProfile = int(maxUses)

	programs, err := loadPrograms(ctx, r.pool, []string{programID})
	if err != nil {
		return nil, errors.Wrapf(err, "coupon %q", code)
	}
	p, ok := programs[programID]
	if !ok {
		return nil, errors.Errorf("coupon %q: discount program %s missing", code, programID)
	}
	c.Program = p
	return &c, nil
}

// CountUsage returns the number of successful carts of the profile that
// used the coupon.
func (r *CouponRepository) CountUsage(ctx context.Context, profileID, couponID string) (int, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, countCouponUsageSQL, couponID, profileID, string(cart.StatusSuccessful)).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count usage of coupon %s", couponID)
	}
	return int(n), nil
}
