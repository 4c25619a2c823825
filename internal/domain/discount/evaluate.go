package discount

import (
	"github.com/xenking/checkout-pricing/internal/domain/money"
)

// Evaluate computes the discount a rule grants to a line given the line's
// current remaining amount. It never mutates the line.
//
// The result never drives the line below its minimum fee; when the line is
// already at or below it the result is zero.
func Evaluate(r Rule, l *Line) (money.Money, error) {
	if !r.Targets(l) {
		return money.Zero, nil
	}

	var amount money.Money
	switch r.Kind {
	case KindFixed:
		amount = money.Min(r.Amount, l.Remaining)
	case KindPercentage:
		pct, err := l.Remaining.Percentage(r.Percentage)
		if err != nil {
			return money.Zero, err
		}
		amount = pct
		if r.MaxLimit != nil {
			amount = money.Min(amount, *r.MaxLimit)
		}
	default:
		return money.Zero, r.Validate()
	}

	// Sub clamps at zero, which covers a minimum fee above the remaining amount.
	headroom := l.Remaining.Sub(l.MinimumFee)
	return money.Min(amount, headroom), nil
}

// ApplyProgram folds every rule of the program, in declared order, over
// every line (primary and related, independently). Each non-zero discount
// is appended to the line's Applied list and deducted from Remaining.
// It returns the total amount discounted by the program.
func ApplyProgram(src Source, code string, p Program, lines []*Line) (money.Money, error) {
	if err := p.Validate(); err != nil {
		return money.Zero, err
	}

	all := Flatten(lines)
	total := money.Zero
	for _, r := range p.Rules {
		for _, l := range all {
			amount, err := Evaluate(r, l)
			if err != nil {
				return money.Zero, err
			}
			if amount.IsZero() {
				continue
			}
			l.Applied = append(l.Applied, Applied{
				Source:    src,
				ProgramID: p.ID,
				RuleID:    r.ID,
				Code:      code,
				Amount:    amount,
			})
			l.Remaining = l.Remaining.Sub(amount)
			total = total.Add(amount)
		}
	}
	return total, nil
}
