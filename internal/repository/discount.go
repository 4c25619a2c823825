package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/discount"
	"github.com/xenking/checkout-pricing/internal/domain/money"
)

// Rules are ordered by position: application order is part of the program.
const loadProgramsSQL = `SELECT p.id, p.title,
		r.id, r.scope, r.product_id, r.product_type, r.kind, r.amount, r.percentage, r.max_limit
	FROM discount_programs p
	LEFT JOIN discount_rules r ON r.program_id = p.id
	WHERE p.id = ANY($1)
	ORDER BY p.id, r.position`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadPrograms returns the discount programs with the given ids, keyed by id.
func loadPrograms(ctx context.Context, q querier, ids []string) (map[string]discount.Program, error) {
	out := make(map[string]discount.Program, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.Query(ctx, loadProgramsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load discount programs")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			programID, title          string
			ruleID, scope, kind       *string
			productID, productType    *string
			amount, percent, maxLimit decimal.NullDecimal
		)
		if err := rows.Scan(
			&programID, &title,
			&ruleID, &scope, &productID, &productType, &kind, &amount, &percent, &maxLimit,
		); err != nil {
			return nil, errors.Wrap(err, "scan discount rule")
		}

		p, ok := out[programID]
		if !ok {
			p = discount.Program{ID: programID, Title: title}
		}
		if ruleID != nil {
			rule, err := buildRule(*ruleID, deref(scope), deref(kind), deref(productID), deref(productType), amount, percent, maxLimit)
			if err != nil {
				return nil, err
			}
			p.Rules = append(p.Rules, rule)
		}
		out[programID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate discount rules")
	}
	return out, nil
}

// buildRule converts a discount_rules row. Negative amounts and caps are
// clamped to zero.
func buildRule(id, scope, kind, productID, productType string, amount, percent, maxLimit decimal.NullDecimal) (discount.Rule, error) {
	r := discount.Rule{
		ID:          id,
		Scope:       discount.Scope(scope),
		ProductID:   productID,
		ProductType: catalog.ProductType(productType),
		Kind:        discount.Kind(kind),
		Percentage:  percent.Decimal,
	}
	if amount.Valid {
		m, err := toMoney(decimal.Max(amount.Decimal, decimal.Zero))
		if err != nil {
			return discount.Rule{}, errors.Wrapf(err, "rule %s", id)
		}
		r.Amount = m
	}
	if maxLimit.Valid {
		m, err := toMoney(decimal.Max(maxLimit.Decimal, decimal.Zero))
		if err != nil {
			return discount.Rule{}, errors.Wrapf(err, "rule %s", id)
		}
		r.MaxLimit = &m
	}
	return r, nil
}

// nullMoney maps an optional amount to a NUMERIC argument.
func nullMoney(m *money.Money) decimal.NullDecimal {
	if m == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: m.Decimal(), Valid: true}
}
