// Package pricing computes the full price breakdown of a checkout cart:
// catalog lookup, membership and coupon discounts, and sales tax.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/coupon"
	"github.com/xenking/checkout-pricing/internal/domain/discount"
	"github.com/xenking/checkout-pricing/internal/domain/membership"
	"github.com/xenking/checkout-pricing/internal/domain/money"
	"github.com/xenking/checkout-pricing/internal/domain/profile"
	"github.com/xenking/checkout-pricing/internal/domain/tax"
)

// Messages reported in Result.CouponMessages and Result.Messages.
const (
	MsgProgramAlreadyApplied = "discount program already applied"
	MsgTaxUnavailable        = "sales tax could not be calculated"
)

// Overlap is the policy for a discount program bound both to the profile's
// membership and to a requested coupon (or to two coupons).
type Overlap string

const (
	// OverlapOnce applies each program at most once per cart.
	OverlapOnce Overlap = "once"
	// OverlapAllow applies a program every time it is bound.
	OverlapAllow Overlap = "allow"
)

// Config tunes the engine.
type Config struct {
	ProgramOverlap Overlap
	// TaxTimeout bounds the tax adapter call. Zero means the caller's
	// context deadline only.
	TaxTimeout time.Duration
}

// CouponValidator checks coupon codes.
type CouponValidator interface {
	Validate(ctx context.Context, store *catalog.Store, code string, p profile.Profile) (coupon.Verdict, error)
}

// MembershipResolver resolves a profile's membership in a store.
type MembershipResolver interface {
	Resolve(ctx context.Context, store *catalog.Store, p profile.Profile) (membership.Resolution, error)
}

// Request is a cart to price.
type Request struct {
	// StoreSlug selects the store. When empty, the store owning the first
	// resolvable product is used.
	StoreSlug   string
	Items       []catalog.ItemRequest
	Profile     profile.Profile
	CouponCodes []string
	// ShipTo enables sales tax when set with a postal code.
	ShipTo *tax.Address
	// RequireMembership rejects the cart unless the profile holds a valid
	// membership in the store.
	RequireMembership bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTaxAdapter enables sales tax calculation.
func WithTaxAdapter(a tax.Adapter) Option {
	return func(e *Engine) { e.tax = a }
}

// WithTracerProvider sets the tracer provider used for pricing spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer("pricing") }
}

// WithMeterProvider sets the meter provider used for pricing counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meter = mp.Meter("pricing") }
}

// Engine prices carts. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	cfg         Config
	catalog     catalog.Repository
	coupons     CouponValidator
	memberships MembershipResolver
	tax         tax.Adapter

	tracer trace.Tracer
	meter  metric.Meter

	pricedCarts    metric.Int64Counter
	couponVerdicts metric.Int64Counter
	taxFailures    metric.Int64Counter
}

// NewEngine creates an Engine.
func NewEngine(
	cfg Config,
	products catalog.Repository,
	coupons CouponValidator,
	memberships MembershipResolver,
	opts ...Option,
) (*Engine, error) {
	switch cfg.ProgramOverlap {
	case "":
		cfg.ProgramOverlap = OverlapOnce
	case OverlapOnce, OverlapAllow:
	default:
		return nil, errors.Errorf("unknown program overlap policy %q", cfg.ProgramOverlap)
	}

	e := &Engine{
		cfg:         cfg,
		catalog:     products,
		coupons:     coupons,
		memberships: memberships,
		tracer:      tracenoop.NewTracerProvider().Tracer("pricing"),
		meter:       metricnoop.NewMeterProvider().Meter("pricing"),
	}
	for _, o := range opts {
		o(e)
	}

	var err error
	if e.pricedCarts, err = e.meter.Int64Counter("pricing.carts.priced",
		metric.WithDescription("Carts priced successfully"),
	); err != nil {
		return nil, errors.Wrap(err, "create carts counter")
	}
	if e.couponVerdicts, err = e.meter.Int64Counter("pricing.coupon.verdicts",
		metric.WithDescription("Coupon validation outcomes by status"),
	); err != nil {
		return nil, errors.Wrap(err, "create coupon counter")
	}
	if e.taxFailures, err = e.meter.Int64Counter("pricing.tax.failures",
		metric.WithDescription("Tax calculations that fell back to zero"),
	); err != nil {
		return nil, errors.Wrap(err, "create tax counter")
	}
	return e, nil
}

// pricing is the working state of a single Price call.
type pricing struct {
	store   *catalog.Store
	lines   []*discount.Line
	applied map[string]bool
	result  *Result
}

func (p *pricing) message(format string, args ...any) {
	p.result.Messages = append(p.result.Messages, fmt.Sprintf(format, args...))
}

// Price computes the breakdown for a cart. Lookup misses and invalid coupons
// are reported in the result; only bad input, repository failures and
// invariant violations are returned as errors.
func (e *Engine) Price(ctx context.Context, req Request) (_ *Result, rerr error) {
	ctx, span := e.tracer.Start(ctx, "pricing.Price",
		trace.WithAttributes(
			attribute.String("store.slug", req.StoreSlug),
			attribute.Int("cart.items", len(req.Items)),
			attribute.Int("cart.coupons", len(req.CouponCodes)),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()
	lg := zctx.From(ctx)

	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}

	p := &pricing{
		applied: make(map[string]bool),
		result:  &Result{Membership: membership.StatusNotFound},
	}
	if err := e.resolveStore(ctx, req.StoreSlug, p); err != nil {
		return nil, err
	}
	if err := e.buildLines(ctx, req.Items, p); err != nil {
		return nil, err
	}
	if len(p.lines) == 0 {
		return nil, ErrNoProducts
	}
	p.result.Store = p.store

	if err := e.applyMembership(ctx, req, p); err != nil {
		return nil, err
	}
	if err := e.applyCoupons(ctx, req, p); err != nil {
		return nil, err
	}

	all := discount.Flatten(p.lines)
	subtotal := money.Zero
	totalDiscount := money.Zero
	for _, l := range all {
		subtotal = subtotal.Add(l.Gross)
		totalDiscount = totalDiscount.Add(l.TotalDiscount())
	}
	p.result.Subtotal = subtotal
	p.result.TotalDiscount = totalDiscount

	taxable, lineTax := e.computeTax(ctx, req.ShipTo, all, p)
	p.result.TotalPayable = subtotal.Sub(totalDiscount).Add(p.result.SalesTax)

	idx := 0
	p.result.Lines = make([]LineResult, 0, len(p.lines))
	for _, l := range p.lines {
		lr := lineResult(l)
		lr.TaxableAmount, lr.SalesTax = taxable[idx], lineTax[idx]
		idx++
		for _, r := range l.Related {
			rr := lineResult(r)
			rr.TaxableAmount, rr.SalesTax = taxable[idx], lineTax[idx]
			idx++
			lr.Related = append(lr.Related, rr)
		}
		p.result.Lines = append(p.result.Lines, lr)
	}

	e.pricedCarts.Add(ctx, 1, metric.WithAttributes(attribute.String("store", p.store.Slug)))
	lg.Debug("Cart priced",
		zap.String("store", p.store.Slug),
		zap.Int("lines", len(all)),
		zap.Stringer("subtotal", p.result.Subtotal),
		zap.Stringer("discount", p.result.TotalDiscount),
		zap.Stringer("tax", p.result.SalesTax),
		zap.Stringer("total", p.result.TotalPayable),
	)
	return p.result, nil
}

func (e *Engine) resolveStore(ctx context.Context, slug string, p *pricing) error {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil
	}
	store, err := e.catalog.GetStoreBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, catalog.ErrStoreNotFound) {
			return errors.Wrapf(ErrUnknownStore, "slug %q", slug)
		}
		return errors.Wrap(err, "get store")
	}
	p.store = store
	return nil
}

// lookup fetches a product and checks it belongs to the cart's store. It
// returns nil for products that must be skipped.
func (e *Engine) lookup(ctx context.Context, id string, cache map[string]*catalog.Product, p *pricing) (*catalog.Product, error) {
	prod, ok := cache[id]
	if !ok {
		var err error
		prod, err = e.catalog.GetProduct(ctx, id)
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			prod = nil
		case err != nil:
			return nil, errors.Wrapf(err, "get product %s", id)
		default:
			if err := prod.Validate(); err != nil {
				return nil, invariant(err)
			}
		}
		cache[id] = prod
	}
	if prod == nil {
		p.message("product %s not found", id)
		return nil, nil
	}

	if p.store == nil {
		store, err := e.catalog.GetStoreForProduct(ctx, prod.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "get store for product %s", prod.ID)
		}
		p.store = store
	}
	if prod.StoreID != p.store.ID {
		p.message("product %s does not belong to store %s", prod.ID, p.store.Slug)
		return nil, nil
	}
	return prod, nil
}

func (e *Engine) buildLines(ctx context.Context, items []catalog.ItemRequest, p *pricing) error {
	cache := make(map[string]*catalog.Product, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return &catalog.QuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
		for _, r := range item.Related {
			if r.Quantity < 1 {
				return &catalog.QuantityError{ProductID: r.ProductID, Quantity: r.Quantity}
			}
		}

		prod, err := e.lookup(ctx, item.ProductID, cache, p)
		if err != nil {
			return err
		}
		if prod == nil {
			// Related items of a skipped primary go with it.
			continue
		}
		line := discount.NewLine(prod, item.Quantity)
		line.StudentEmail = item.StudentEmail

		for _, r := range item.Related {
			rp, err := e.lookup(ctx, r.ProductID, cache, p)
			if err != nil {
				return err
			}
			if rp == nil {
				continue
			}
			rl, err := line.AddRelated(rp, r.Quantity)
			if err != nil {
				return invariant(err)
			}
			rl.StudentEmail = r.StudentEmail
		}
		p.lines = append(p.lines, line)
	}
	return nil
}

func (e *Engine) applyProgram(src discount.Source, prog discount.Program, c *coupon.Coupon, p *pricing) error {
	amount, err := discount.ApplyProgram(src, codeOf(c), prog, p.lines)
	if err != nil {
		return invariant(err)
	}
	p.applied[prog.ID] = true

	s := DiscountSummary{
		Source:    src,
		ProgramID: prog.ID,
		Title:     prog.Title,
		Amount:    amount,
	}
	if c != nil {
		s.Code = c.Code
		s.CouponID = c.ID
	}
	p.result.Discounts = append(p.result.Discounts, s)
	return nil
}

func codeOf(c *coupon.Coupon) string {
	if c == nil {
		return ""
	}
	return c.Code
}

func (e *Engine) applyMembership(ctx context.Context, req Request, p *pricing) error {
	res, err := e.memberships.Resolve(ctx, p.store, req.Profile)
	if err != nil {
		return errors.Wrap(err, "resolve membership")
	}
	p.result.Membership = res.Status

	if !res.Valid() {
		if req.RequireMembership {
			return res.Require()
		}
		return nil
	}
	for _, prog := range res.Program.Programs {
		if e.cfg.ProgramOverlap == OverlapOnce && p.applied[prog.ID] {
			continue
		}
		if err := e.applyProgram(discount.SourceMembership, prog, nil, p); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyCoupons(ctx context.Context, req Request, p *pricing) error {
	seen := make(map[string]bool, len(req.CouponCodes))
	for _, raw := range req.CouponCodes {
		code := strings.TrimSpace(raw)
		if seen[code] {
			continue
		}
		seen[code] = true

		v, err := e.coupons.Validate(ctx, p.store, code, req.Profile)
		if err != nil {
			return errors.Wrapf(err, "validate coupon %q", code)
		}
		e.couponVerdicts.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(v.Status))))

		msg := v.Message
		if v.Valid() {
			prog := v.Coupon.Program
			if e.cfg.ProgramOverlap == OverlapOnce && p.applied[prog.ID] {
				msg = MsgProgramAlreadyApplied
			} else if err := e.applyProgram(discount.SourceCoupon, prog, v.Coupon, p); err != nil {
				return err
			}
		}
		p.result.CouponMessages = append(p.result.CouponMessages, CouponMessage{Code: code, Message: msg})
	}
	return nil
}

// computeTax returns per-line taxable amounts and sales tax in flattened
// line order and sets the result's SalesTax. Any adapter failure yields
// zero tax and a message.
func (e *Engine) computeTax(ctx context.Context, shipTo *tax.Address, all []*discount.Line, p *pricing) (taxable, lineTax []money.Money) {
	taxable = make([]money.Money, len(all))
	lineTax = make([]money.Money, len(all))
	p.result.SalesTax = money.Zero

	if e.tax == nil || shipTo == nil || strings.TrimSpace(shipTo.PostalCode) == "" || !p.store.TaxEnabled {
		return taxable, lineTax
	}

	req := tax.Request{
		Lines:              make([]tax.Line, len(all)),
		ShipTo:             *shipTo,
		ShipFromPostalCode: p.store.ShipFromPostalCode,
		CompanyCode:        p.store.TaxCompanyCode,
	}
	for i, l := range all {
		req.Lines[i] = tax.Line{
			Number:      i + 1,
			Amount:      l.Payable(),
			TaxCode:     l.TaxCode,
			Description: l.Title,
		}
	}

	taxCtx := ctx
	if e.cfg.TaxTimeout > 0 {
		var cancel context.CancelFunc
		taxCtx, cancel = context.WithTimeout(ctx, e.cfg.TaxTimeout)
		defer cancel()
	}

	quote, err := e.tax.Compute(taxCtx, req)
	if err == nil {
		err = quote.Check(req)
	}
	if err != nil {
		zctx.From(ctx).Warn("Tax calculation failed", zap.Error(err))
		e.taxFailures.Add(ctx, 1)
		p.message(MsgTaxUnavailable)
		return taxable, lineTax
	}

	copy(taxable, quote.PerLineTaxable)
	p.result.SalesTax = quote.TotalTax
	return taxable, money.Allocate(quote.TotalTax, taxable)
}
