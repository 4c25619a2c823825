package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/checkout-pricing/internal/domain/pricing"
)

// Pricer prices carts.
type Pricer interface {
	Price(ctx context.Context, req pricing.Request) (*pricing.Result, error)
}

// Service prices a cart and persists the snapshot.
type Service struct {
	pricer Pricer
	carts  Repository
	now    func() time.Time
}

// NewService creates a cart Service.
func NewService(pricer Pricer, carts Repository) *Service {
	return &Service{pricer: pricer, carts: carts, now: time.Now}
}

// Add prices the request and stores the result as a new cart in the
// created state.
func (s *Service) Add(ctx context.Context, req pricing.Request) (*Cart, *pricing.Result, error) {
	res, err := s.pricer.Price(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	c := Snapshot(uuid.New().String(), req.Profile.ID, res)
	c.CreatedAt = s.now()
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, nil, errors.Wrap(err, "create cart")
	}

	zctx.From(ctx).Info("Cart created",
		zap.String("cart_id", c.ID),
		zap.String("store", res.Store.Slug),
		zap.Int("items", len(c.Items)),
		zap.Stringer("total", c.TotalPayable),
	)
	return c, res, nil
}

// Get returns a persisted cart.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.carts.Get(ctx, id)
}

// Snapshot converts a pricing result into a cart. Items are numbered in
// flattened order: each primary followed by its related items.
func Snapshot(id, profileID string, res *pricing.Result) *Cart {
	c := &Cart{
		ID:            id,
		StoreID:       res.Store.ID,
		ProfileID:     profileID,
		Status:        StatusCreated,
		Subtotal:      res.Subtotal,
		TotalDiscount: res.TotalDiscount,
		SalesTax:      res.SalesTax,
		TotalPayable:  res.TotalPayable,
		CouponIDs:     res.AppliedCouponIDs(),
	}

	pos := 0
	for _, l := range res.Lines {
		parent := pos
		c.Items = append(c.Items, item(pos, nil, l))
		pos++
		for _, r := range l.Related {
			c.Items = append(c.Items, item(pos, &parent, r))
			pos++
		}
	}
	return c
}

func item(pos int, parent *int, l pricing.LineResult) Item {
	var pp *int
	if parent != nil {
		v := *parent
		pp = &v
	}
	return Item{
		Position:       pos,
		ParentPosition: pp,
		ProductID:      l.ProductID,
		ProductType:    l.ProductType,
		Title:          l.Title,
		Quantity:       l.Quantity,
		StudentEmail:   l.StudentEmail,
		UnitPrice:      l.UnitPrice,
		TotalDiscount:  l.TotalDiscount,
		Payable:        l.Payable,
		SalesTax:       l.SalesTax,
	}
}
