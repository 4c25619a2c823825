// Package discount evaluates discount programs against priced line items.
//
// A program is an ordered list of rules. Rules are applied in declared order
// and each one sees the running remaining amount left by the rules before
// it, so reordering rules changes totals.
package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/money"
)

// Scope selects which line items a rule targets.
type Scope string

const (
	// ScopeAll targets every line item.
	ScopeAll Scope = "all"
	// ScopeProduct targets a single product.
	ScopeProduct Scope = "product"
	// ScopeProductType targets every product of one type.
	ScopeProductType Scope = "product_type"
)

// Kind is the discount computation strategy.
type Kind string

const (
	// KindFixed takes a fixed amount off each targeted line.
	KindFixed Kind = "fixed"
	// KindPercentage takes a percentage of each targeted line's remaining amount.
	KindPercentage Kind = "percentage"
)

// Source records where an applied discount came from.
type Source string

const (
	// SourceMembership is a discount granted by a membership program.
	SourceMembership Source = "membership"
	// SourceCoupon is a discount granted by a coupon code.
	SourceCoupon Source = "coupon"
)

var (
	// ErrInvalidPercentage is returned for rule percentages outside [0,100].
	ErrInvalidPercentage = money.ErrInvalidPercentage
	// ErrUnknownScope is returned for rules with an unsupported scope.
	ErrUnknownScope = errors.New("unknown discount scope")
	// ErrUnknownKind is returned for rules with an unsupported kind.
	ErrUnknownKind = errors.New("unknown discount kind")
)

// Rule is a single discount instruction inside a Program.
type Rule struct {
	ID          string
	Scope       Scope
	ProductID   string
	ProductType catalog.ProductType
	Kind        Kind
	Amount      money.Money
	Percentage  decimal.Decimal
	MaxLimit    *money.Money
}

// Validate reports rules that cannot be evaluated.
func (r Rule) Validate() error {
	switch r.Scope {
	case ScopeAll, ScopeProduct, ScopeProductType:
	default:
		return errors.Wrapf(ErrUnknownScope, "rule %s: %q", r.ID, r.Scope)
	}
	switch r.Kind {
	case KindFixed:
	case KindPercentage:
		if err := money.CheckPercentage(r.Percentage); err != nil {
			return errors.Wrapf(err, "rule %s", r.ID)
		}
	default:
		return errors.Wrapf(ErrUnknownKind, "rule %s: %q", r.ID, r.Kind)
	}
	return nil
}

// Targets reports whether the rule's scope includes the line.
func (r Rule) Targets(l *Line) bool {
	switch r.Scope {
	case ScopeAll:
		return true
	case ScopeProduct:
		return r.ProductID == l.ProductID
	case ScopeProductType:
		return r.ProductType == l.ProductType
	default:
		return false
	}
}

// Program is a named, ordered collection of rules.
type Program struct {
	ID    string
	Title string
	Rules []Rule
}

// Validate checks every rule of the program.
func (p Program) Validate() error {
	for _, r := range p.Rules {
		if err := r.Validate(); err != nil {
			return errors.Wrapf(err, "program %s", p.ID)
		}
	}
	return nil
}

// Applied is one discount attributed to a line item.
type Applied struct {
	Source    Source
	ProgramID string
	RuleID    string
	Code      string
	Amount    money.Money
}
