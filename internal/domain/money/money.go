// Package money provides the exact decimal amount type used for every price,
// discount and tax figure in the pricing engine.
//
// Every value is kept rounded to Scale fractional digits. Rounding is
// half-up: amounts are never negative, so decimal's half-away-from-zero
// rounding is equivalent.
package money

import (
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept on every amount.
const Scale = 2

var (
	// ErrInvalidAmount is returned when an amount is constructed from a
	// negative value.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidPercentage is returned when a percentage is outside [0,100].
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
)

var hundred = decimal.NewFromInt(100)

// Money is a non-negative amount with two fractional digits.
// The zero value is a valid zero amount.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// New constructs Money from a decimal, rounding it to Scale digits.
// Negative values fail with ErrInvalidAmount.
func New(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, errors.Wrapf(ErrInvalidAmount, "negative amount %s", d.String())
	}
	return Money{d: d.Round(Scale)}, nil
}

// Parse constructs Money from its decimal string form.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, errors.Wrapf(ErrInvalidAmount, "parse %q: %v", s, err)
	}
	return New(d)
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromCents constructs Money from an integer count of cents.
func FromCents(cents int64) (Money, error) {
	return New(decimal.New(cents, -Scale))
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d).Round(Scale)}
}

// Sub returns m - o, clamped at zero.
func (m Money) Sub(o Money) Money {
	r := m.d.Sub(o.d)
	if r.IsNegative() {
		return Zero
	}
	return Money{d: r.Round(Scale)}
}

// Mul returns m multiplied by a non-negative quantity. Negative quantities
// yield zero.
func (m Money) Mul(quantity int) Money {
	if quantity <= 0 {
		return Zero
	}
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(quantity))).Round(Scale)}
}

// Percentage returns p percent of m. p must be within [0,100].
func (m Money) Percentage(p decimal.Decimal) (Money, error) {
	if err := CheckPercentage(p); err != nil {
		return Money{}, err
	}
	return Money{d: m.d.Mul(p).Div(hundred).Round(Scale)}, nil
}

// CheckPercentage reports ErrInvalidPercentage when p is outside [0,100].
func CheckPercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return errors.Wrapf(ErrInvalidPercentage, "got %s", p.String())
	}
	return nil
}

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a.d.LessThan(b.d) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Money) Money {
	if a.d.GreaterThan(b.d) {
		return a
	}
	return b
}

// Sum adds all amounts.
func Sum(ms ...Money) Money {
	total := Zero
	for _, m := range ms {
		total = total.Add(m)
	}
	return total
}

// Equal reports whether m and o represent the same amount.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Cmp compares m and o: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

// LessThan reports whether m < o.
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

// GreaterThan reports whether m > o.
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

// IsZero reports whether m is zero.
func (m Money) IsZero() bool { return m.d.IsZero() }

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount as an integer count of cents.
func (m Money) Cents() int64 { return m.d.Shift(Scale).IntPart() }

// String renders the amount with exactly two fractional digits.
func (m Money) String() string { return m.d.StringFixed(Scale) }

// MarshalText implements encoding.TextMarshaler.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Money) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Allocate splits total across the given weights in whole cents. Shares are
// proportional to the weights; leftover cents go to the largest fractional
// remainders, earlier index first on ties. When every weight is zero the
// total is split evenly. The result always sums to total.
func Allocate(total Money, weights []Money) []Money {
	out := make([]Money, len(weights))
	if len(weights) == 0 || total.IsZero() {
		return out
	}

	cents := total.Cents()
	totalWeight := int64(0)
	for _, w := range weights {
		totalWeight += w.Cents()
	}

	shares := make([]int64, len(weights))
	type rem struct {
		idx int
		rem decimal.Decimal
	}
	rems := make([]rem, len(weights))
	distributed := int64(0)

	for i, w := range weights {
		var exact decimal.Decimal
		if totalWeight == 0 {
			exact = decimal.NewFromInt(cents).Div(decimal.NewFromInt(int64(len(weights))))
		} else {
			exact = decimal.NewFromInt(cents).Mul(decimal.NewFromInt(w.Cents())).Div(decimal.NewFromInt(totalWeight))
		}
		floor := exact.Floor()
		shares[i] = floor.IntPart()
		distributed += shares[i]
		rems[i] = rem{idx: i, rem: exact.Sub(floor)}
	}

	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].rem.GreaterThan(rems[b].rem)
	})
	for i := 0; distributed < cents; i++ {
		shares[rems[i%len(rems)].idx]++
		distributed++
	}

	for i, c := range shares {
		out[i] = Money{d: decimal.New(c, -Scale)}
	}
	return out
}
