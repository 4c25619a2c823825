package handler

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/checkout-pricing/internal/domain/cart"
	"github.com/xenking/checkout-pricing/internal/domain/membership"
	"github.com/xenking/checkout-pricing/internal/domain/money"
	"github.com/xenking/checkout-pricing/internal/domain/pricing"
)

func field(e *jx.Encoder, name, value string) {
	e.FieldStart(name)
	e.Str(value)
}

func moneyField(e *jx.Encoder, name string, m money.Money) {
	field(e, name, m.String())
}

// encodeSummary writes the priced breakdown. cartID is omitted when empty.
func encodeSummary(e *jx.Encoder, cartID string, res *pricing.Result) {
	e.ObjStart()
	if cartID != "" {
		field(e, "cart_id", cartID)
	}
	field(e, "store", res.Store.Slug)
	moneyField(e, "subtotal", res.Subtotal)
	moneyField(e, "total_discount", res.TotalDiscount)
	moneyField(e, "sales_tax", res.SalesTax)
	moneyField(e, "total_payable", res.TotalPayable)
	field(e, "membership", string(res.Membership))

	e.FieldStart("products")
	e.ArrStart()
	for _, l := range res.Lines {
		encodeLine(e, l)
	}
	e.ArrEnd()

	e.FieldStart("discounts")
	e.ArrStart()
	for _, d := range res.Discounts {
		e.ObjStart()
		field(e, "type", string(d.Source))
		field(e, "program_id", d.ProgramID)
		field(e, "title", d.Title)
		if d.Code != "" {
			field(e, "code", d.Code)
		}
		moneyField(e, "amount", d.Amount)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("coupon_messages")
	e.ArrStart()
	for _, m := range res.CouponMessages {
		e.ObjStart()
		field(e, "code", m.Code)
		field(e, "message", m.Message)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("messages")
	e.ArrStart()
	for _, m := range res.Messages {
		e.Str(m)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeLine(e *jx.Encoder, l pricing.LineResult) {
	e.ObjStart()
	field(e, "product_id", l.ProductID)
	field(e, "title", l.Title)
	field(e, "product_type", string(l.ProductType))
	if l.StudentEmail != "" {
		field(e, "student_email", l.StudentEmail)
	}
	moneyField(e, "unit_price", l.UnitPrice)
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	moneyField(e, "gross", l.Gross)
	moneyField(e, "total_discount", l.TotalDiscount)
	moneyField(e, "payable", l.Payable)
	moneyField(e, "taxable_amount", l.TaxableAmount)
	moneyField(e, "sales_tax", l.SalesTax)

	e.FieldStart("discounts")
	e.ArrStart()
	for _, a := range l.Discounts {
		e.ObjStart()
		field(e, "type", string(a.Source))
		field(e, "program_id", a.ProgramID)
		field(e, "rule_id", a.RuleID)
		if a.Code != "" {
			field(e, "code", a.Code)
		}
		moneyField(e, "amount", a.Amount)
		e.ObjEnd()
	}
	e.ArrEnd()

	if len(l.Related) > 0 {
		e.FieldStart("related")
		e.ArrStart()
		for _, r := range l.Related {
			encodeLine(e, r)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	field(e, "cart_id", c.ID)
	field(e, "store_id", c.StoreID)
	if c.ProfileID != "" {
		field(e, "profile_id", c.ProfileID)
	}
	field(e, "status", string(c.Status))
	moneyField(e, "subtotal", c.Subtotal)
	moneyField(e, "total_discount", c.TotalDiscount)
	moneyField(e, "sales_tax", c.SalesTax)
	moneyField(e, "total_payable", c.TotalPayable)
	field(e, "created_at", c.CreatedAt.UTC().Format(time.RFC3339))

	e.FieldStart("coupon_ids")
	e.ArrStart()
	for _, id := range c.CouponIDs {
		e.Str(id)
	}
	e.ArrEnd()

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range c.Items {
		e.ObjStart()
		e.FieldStart("position")
		e.Int(it.Position)
		e.FieldStart("parent_position")
		if it.ParentPosition != nil {
			e.Int(*it.ParentPosition)
		} else {
			e.Null()
		}
		field(e, "product_id", it.ProductID)
		field(e, "product_type", string(it.ProductType))
		field(e, "title", it.Title)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		if it.StudentEmail != "" {
			field(e, "student_email", it.StudentEmail)
		}
		moneyField(e, "unit_price", it.UnitPrice)
		moneyField(e, "total_discount", it.TotalDiscount)
		moneyField(e, "payable", it.Payable)
		moneyField(e, "sales_tax", it.SalesTax)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeMembership(e *jx.Encoder, res membership.Resolution) {
	e.ObjStart()
	field(e, "status", string(res.Status))
	e.FieldStart("valid")
	e.Bool(res.Valid())
	if res.Program != nil {
		field(e, "program_id", res.Program.ID)
		field(e, "title", res.Program.Title)
	}
	e.ObjEnd()
}
