package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsNegative(t *testing.T) {
	_, err := New(decimal.RequireFromString("-0.01"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("-5")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("abc")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRounding_HalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"2.675", "2.68"},
		{"0.125", "0.13"},
		{"10", "10.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MustParse(tt.in).String())
		})
	}
}

func TestSub_ClampsAtZero(t *testing.T) {
	got := MustParse("10.00").Sub(MustParse("25.50"))
	assert.True(t, got.IsZero())
	assert.Equal(t, "4.50", MustParse("10.00").Sub(MustParse("5.50")).String())
}

func TestMul(t *testing.T) {
	assert.Equal(t, "29.97", MustParse("9.99").Mul(3).String())
	assert.True(t, MustParse("9.99").Mul(0).IsZero())
}

func TestPercentage(t *testing.T) {
	got, err := MustParse("29.97").Percentage(decimal.NewFromInt(15))
	require.NoError(t, err)
	// 4.4955 rounds half-up to 4.50.
	assert.Equal(t, "4.50", got.String())

	_, err = MustParse("10").Percentage(decimal.NewFromInt(101))
	require.ErrorIs(t, err, ErrInvalidPercentage)

	_, err = MustParse("10").Percentage(decimal.NewFromInt(-1))
	require.ErrorIs(t, err, ErrInvalidPercentage)
}

func TestMinMaxEqual(t *testing.T) {
	a, b := MustParse("15.00"), MustParse("10")
	assert.True(t, Min(a, b).Equal(b))
	assert.True(t, Max(a, b).Equal(a))
	assert.True(t, MustParse("10").Equal(MustParse("10.000")))
	assert.Equal(t, 1, a.Cmp(b))
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		weights []string
		want    []string
	}{
		{
			name:    "proportional",
			total:   "10.00",
			weights: []string{"30", "70"},
			want:    []string{"3.00", "7.00"},
		},
		{
			name:    "leftover cent goes to largest remainder",
			total:   "1.00",
			weights: []string{"1", "1", "1"},
			want:    []string{"0.34", "0.33", "0.33"},
		},
		{
			name:    "zero weights split evenly",
			total:   "0.05",
			weights: []string{"0", "0"},
			want:    []string{"0.03", "0.02"},
		},
		{
			name:    "zero total",
			total:   "0",
			weights: []string{"5", "5"},
			want:    []string{"0.00", "0.00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights := make([]Money, len(tt.weights))
			for i, w := range tt.weights {
				weights[i] = MustParse(w)
			}
			got := Allocate(MustParse(tt.total), weights)
			require.Len(t, got, len(tt.want))

			sum := Zero
			for i, g := range got {
				assert.Equal(t, tt.want[i], g.String(), "share %d", i)
				sum = sum.Add(g)
			}
			assert.True(t, MustParse(tt.total).Equal(sum))
		})
	}
}

func TestText(t *testing.T) {
	b, err := MustParse("12.5").MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "12.50", string(b))

	var m Money
	require.NoError(t, m.UnmarshalText([]byte("3.333")))
	assert.Equal(t, "3.33", m.String())
}
