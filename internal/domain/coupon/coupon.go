package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/checkout-pricing/internal/domain/discount"
)

// ErrNotFound is returned by a Repository when no coupon matches the code.
var ErrNotFound = errors.New("coupon not found")

// Coupon binds a store-unique code to a discount program.
type Coupon struct {
	ID        string
	StoreID   string
	Code      string
	Program   discount.Program
	Active    bool
	StartDate *time.Time
	EndDate   *time.Time
	// MaxUsesPerProfile is how many successful purchases a profile may make
	// with this coupon. Zero means once.
	MaxUsesPerProfile int
}

// UsageLimit returns the effective per-profile usage limit.
func (c *Coupon) UsageLimit() int {
	if c.MaxUsesPerProfile > 0 {
		return c.MaxUsesPerProfile
	}
	return 1
}

// Repository looks up coupons and their recorded usage.
type Repository interface {
	// FindByCode returns the store's coupon with the given code, or ErrNotFound.
	FindByCode(ctx context.Context, storeID, code string) (*Coupon, error)
	// CountUsage returns the number of successful purchases by the profile
	// whose cart used the coupon.
	CountUsage(ctx context.Context, profileID, couponID string) (int, error)
}
