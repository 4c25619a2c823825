package pricing

import (
	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/discount"
	"github.com/xenking/checkout-pricing/internal/domain/membership"
	"github.com/xenking/checkout-pricing/internal/domain/money"
)

// Result is the priced breakdown of a cart.
//
// Subtotal - TotalDiscount + SalesTax == TotalPayable always holds.
type Result struct {
	Store          *catalog.Store
	Lines          []LineResult
	Subtotal       money.Money
	TotalDiscount  money.Money
	SalesTax       money.Money
	TotalPayable   money.Money
	Discounts      []DiscountSummary
	CouponMessages []CouponMessage
	Messages       []string
	Membership     membership.Status
}

// LineResult is one priced line. Related is empty on related lines.
type LineResult struct {
	ProductID     string
	Title         string
	ProductType   catalog.ProductType
	StudentEmail  string
	UnitPrice     money.Money
	Quantity      int
	Gross         money.Money
	Discounts     []discount.Applied
	TotalDiscount money.Money
	Payable       money.Money
	TaxableAmount money.Money
	SalesTax      money.Money
	Related       []LineResult
}

// DiscountSummary is the total granted by one applied program.
type DiscountSummary struct {
	Source    discount.Source
	ProgramID string
	Title     string
	Code      string
	CouponID  string
	Amount    money.Money
}

// CouponMessage is the validation outcome reported for a requested code.
type CouponMessage struct {
	Code    string
	Message string
}

// AppliedCouponIDs returns the ids of coupons whose programs were applied.
func (r *Result) AppliedCouponIDs() []string {
	var ids []string
	for _, d := range r.Discounts {
		if d.Source == discount.SourceCoupon {
			ids = append(ids, d.CouponID)
		}
	}
	return ids
}

func lineResult(l *discount.Line) LineResult {
	return LineResult{
		ProductID:     l.ProductID,
		Title:         l.Title,
		ProductType:   l.ProductType,
		StudentEmail:  l.StudentEmail,
		UnitPrice:     l.UnitPrice,
		Quantity:      l.Quantity,
		Gross:         l.Gross,
		Discounts:     append([]discount.Applied(nil), l.Applied...),
		TotalDiscount: l.TotalDiscount(),
		Payable:       l.Payable(),
	}
}
