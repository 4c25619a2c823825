package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/checkout-pricing/internal/domain/cart"
	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/money"
)

const (
	createCartSQL = `INSERT INTO carts (id, store_id, profile_id, status, subtotal, total_discount, sales_tax, total_payable, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	createCartItemSQL = `INSERT INTO cart_items (cart_id, position, parent_position, product_id, product_type, title,
		quantity, student_email, unit_price, total_discount, payable, sales_tax)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	createCartCouponSQL = `INSERT INTO cart_coupons (cart_id, coupon_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	getCartSQL = `SELECT id::text, store_id, profile_id, status, subtotal, total_discount, sales_tax, total_payable, created_at
		FROM carts WHERE id = $1`

	getCartItemsSQL = `SELECT position, parent_position, product_id, product_type, title,
		quantity, student_email, unit_price, total_discount, payable, sales_tax
		FROM cart_items WHERE cart_id = $1 ORDER BY position`

	getCartCouponsSQL = `SELECT coupon_id FROM cart_coupons WHERE cart_id = $1 ORDER BY coupon_id`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Create persists the cart, its items and applied coupons in one transaction.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createCartSQL,
			c.ID, c.StoreID, c.ProfileID, string(c.Status),
			c.Subtotal.Decimal(), c.TotalDiscount.Decimal(), c.SalesTax.Decimal(), c.TotalPayable.Decimal(),
			c.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "insert cart")
		}

		b := &pgx.Batch{}
		for _, it := range c.Items {
			b.Queue(createCartItemSQL,
				c.ID, it.Position, it.ParentPosition, it.ProductID, string(it.ProductType), it.Title,
				it.Quantity, it.StudentEmail,
				it.UnitPrice.Decimal(), it.TotalDiscount.Decimal(), it.Payable.Decimal(), it.SalesTax.Decimal(),
			)
		}
		for _, id := range c.CouponIDs {
			b.Queue(createCartCouponSQL, c.ID, id)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return errors.Wrap(err, "insert cart items")
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "create cart %q", c.ID)
	}
	return nil
}

// Get returns the cart with its items, or cart.ErrNotFound.
func (r *CartRepository) Get(ctx context.Context, id string) (*cart.Cart, error) {
	var (
		c                            cart.Cart
		status                       string
		subtotal, disc, tax, payable decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, getCartSQL, id).Scan(
		&c.ID, &c.StoreID, &c.ProfileID, &status, &subtotal, &disc, &tax, &payable, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get cart %q", id)
	}
	c.Status = cart.Status(status)
	if c.Subtotal, err = toMoney(subtotal); err != nil {
		return nil, err
	}
	if c.TotalDiscount, err = toMoney(disc); err != nil {
		return nil, err
	}
	if c.SalesTax, err = toMoney(tax); err != nil {
		return nil, err
	}
	if c.TotalPayable, err = toMoney(payable); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, getCartItemsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get cart %q items", id)
	}
	c.Items, err = pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, errors.Wrapf(err, "get cart %q items", id)
	}

	rows, err = r.pool.Query(ctx, getCartCouponsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get cart %q coupons", id)
	}
	c.CouponIDs, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrapf(err, "get cart %q coupons", id)
	}
	return &c, nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		it                            cart.Item
		productType                   string
		parent                        *int32
		position, quantity            int32
		unit, disc, payable, salesTax decimal.Decimal
	)
	if err := row.Scan(
		&position, &parent, &it.ProductID, &productType, &it.Title,
		&quantity, &it.StudentEmail, &unit, &disc, &payable, &salesTax,
	); err != nil {
		return cart.Item{}, err
	}
	it.Position = int(position)
	if parent != nil {
		p := int(*parent)
		it.ParentPosition = &p
	}
	it.ProductType = catalog.ProductType(productType)
	it.Quantity = int(quantity)

	var err error
	for _, f := range []struct {
		dst *money.Money
		src decimal.Decimal
	}{
		{&it.UnitPrice, unit},
		{&it.TotalDiscount, disc},
		{&it.Payable, payable},
		{&it.SalesTax, salesTax},
	} {
		if *f.dst, err = toMoney(f.src); err != nil {
			return cart.Item{}, err
		}
	}
	return it, nil
}

const updateCartStatusSQL = `UPDATE carts SET status = $2 WHERE id = $1`

// UpdateStatus moves a cart to a new status. Completing a cart marks its
// coupons as used by the cart's profile.
func (r *CartRepository) UpdateStatus(ctx context.Context, id string, status cart.Status) error {
	tag, err := r.pool.Exec(ctx, updateCartStatusSQL, id, string(status))
	if err != nil {
		return errors.Wrapf(err, "update cart %q status", id)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}
