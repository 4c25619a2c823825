package discount

import (
	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/money"
)

// Line is a priced, quantity-bearing cart entry. Gross is fixed at
// construction; discounts are recorded in Applied and reduce Remaining.
type Line struct {
	ProductID    string
	ProductType  catalog.ProductType
	Title        string
	TaxCode      string
	StudentEmail string
	UnitPrice    money.Money
	Quantity     int
	Gross        money.Money
	MinimumFee   money.Money
	Remaining    money.Money
	Applied      []Applied

	// Related holds add-ons of a primary line. Always empty on related lines.
	Related []*Line
	related bool
}

// NewLine builds a primary line from a catalog product.
func NewLine(p *catalog.Product, quantity int) *Line {
	gross := p.Fee.Mul(quantity)
	return &Line{
		ProductID:   p.ID,
		ProductType: p.Type,
		Title:       p.Title,
		TaxCode:     p.TaxCode,
		UnitPrice:   p.Fee,
		Quantity:    quantity,
		Gross:       gross,
		MinimumFee:  p.MinimumFee,
		Remaining:   gross,
	}
}

// AddRelated attaches an add-on product to a primary line and returns the
// new related line. Related lines cannot carry related lines of their own.
func (l *Line) AddRelated(p *catalog.Product, quantity int) (*Line, error) {
	if l.related {
		return nil, catalog.ErrRelatedDepth
	}
	r := NewLine(p, quantity)
	r.related = true
	l.Related = append(l.Related, r)
	return r, nil
}

// IsRelated reports whether l is an add-on of another line.
func (l *Line) IsRelated() bool { return l.related }

// TotalDiscount is the sum of every applied discount.
func (l *Line) TotalDiscount() money.Money {
	total := money.Zero
	for _, a := range l.Applied {
		total = total.Add(a.Amount)
	}
	return total
}

// Payable is the gross amount less applied discounts.
func (l *Line) Payable() money.Money {
	return l.Gross.Sub(l.TotalDiscount())
}

// Flatten returns the primary lines followed, per primary, by their related
// lines: p1, p1.r1, p1.r2, p2, ...
func Flatten(lines []*Line) []*Line {
	out := make([]*Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, l)
		out = append(out, l.Related...)
	}
	return out
}
