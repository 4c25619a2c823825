package repository

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/checkout-pricing/internal/domain/discount"
)

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestBuildRule(t *testing.T) {
	tests := []struct {
		name       string
		amount     decimal.NullDecimal
		maxLimit   decimal.NullDecimal
		wantAmount string
		wantLimit  string
	}{
		{"positive amount", nullDec("5.5"), decimal.NullDecimal{}, "5.50", ""},
		{"negative amount clamped", nullDec("-5"), decimal.NullDecimal{}, "0.00", ""},
		{"null amount", decimal.NullDecimal{}, decimal.NullDecimal{}, "0.00", ""},
		{"max limit kept", nullDec("1"), nullDec("25"), "1.00", "25.00"},
		{"negative max limit clamped", nullDec("1"), nullDec("-3"), "1.00", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := buildRule("r1", "all", "fixed", "", "", tt.amount, decimal.NullDecimal{}, tt.maxLimit)
			require.NoError(t, err)
			assert.Equal(t, "r1", r.ID)
			assert.Equal(t, discount.ScopeAll, r.Scope)
			assert.Equal(t, discount.KindFixed, r.Kind)
			assert.Equal(t, tt.wantAmount, r.Amount.String())
			if tt.wantLimit == "" {
				assert.Nil(t, r.MaxLimit)
				return
			}
			require.NotNil(t, r.MaxLimit)
			assert.Equal(t, tt.wantLimit, r.MaxLimit.String())
		})
	}
}
