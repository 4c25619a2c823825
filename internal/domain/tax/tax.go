// Package tax defines the sales tax calculation contract used by the
// pricing engine.
package tax

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/checkout-pricing/internal/domain/money"
)

// ErrMalformedQuote is returned when a quote cannot be matched to the
// request, e.g. a per-line count mismatch or a negative amount.
var ErrMalformedQuote = errors.New("malformed tax quote")

// Address is a ship-to destination.
type Address struct {
	PostalCode string
	Country    string
}

// Line is a single taxable entry. Number is 1-based and follows the order
// of the priced cart lines.
type Line struct {
	Number      int
	Amount      money.Money
	TaxCode     string
	Description string
}

// Request is a tax calculation for one cart.
type Request struct {
	Lines              []Line
	ShipTo             Address
	ShipFromPostalCode string
	CompanyCode        string
}

// Quote is the calculated tax. PerLineTaxable has one entry per request line.
type Quote struct {
	TotalTax       money.Money
	PerLineTaxable []money.Money
}

// Check reports quotes that do not fit the request they answer.
func (q Quote) Check(req Request) error {
	if len(q.PerLineTaxable) != len(req.Lines) {
		return errors.Wrapf(ErrMalformedQuote, "got %d taxable lines, want %d", len(q.PerLineTaxable), len(req.Lines))
	}
	return nil
}

// Adapter computes sales tax for a cart.
type Adapter interface {
	Compute(ctx context.Context, req Request) (Quote, error)
}
