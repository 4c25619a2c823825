// Package cart persists priced cart snapshots created at add-to-cart time.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/money"
)

// ErrNotFound is returned when a cart id does not resolve.
var ErrNotFound = errors.New("cart does not exist")

// Status is the lifecycle state of a cart.
type Status string

const (
	StatusCreated    Status = "created"
	StatusSuccessful Status = "successful"
)

// Cart is a persisted snapshot of a priced cart.
type Cart struct {
	ID            string
	StoreID       string
	ProfileID     string
	Status        Status
	Subtotal      money.Money
	TotalDiscount money.Money
	SalesTax      money.Money
	TotalPayable  money.Money
	Items         []Item
	CouponIDs     []string
	CreatedAt     time.Time
}

// Item is one persisted cart line. ParentPosition is set on related items
// and points at the primary item's Position.
type Item struct {
	Position       int
	ParentPosition *int
	ProductID      string
	ProductType    catalog.ProductType
	Title          string
	Quantity       int
	StudentEmail   string
	UnitPrice      money.Money
	TotalDiscount  money.Money
	Payable        money.Money
	SalesTax       money.Money
}

// Repository persists carts.
type Repository interface {
	Create(ctx context.Context, c *Cart) error
	Get(ctx context.Context, id string) (*Cart, error)
}
