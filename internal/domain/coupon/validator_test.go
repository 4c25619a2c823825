package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/discount"
	"github.com/xenking/checkout-pricing/internal/domain/profile"
)

type mockCouponRepo struct {
	coupon   *Coupon
	err      error
	used     int
	usageErr error

	usageCalls int
	lookedUp   string
}

func (m *mockCouponRepo) FindByCode(_ context.Context, storeID, code string) (*Coupon, error) {
	m.lookedUp = storeID + "/" + code
	return m.coupon, m.err
}

func (m *mockCouponRepo) CountUsage(_ context.Context, _, _ string) (int, error) {
	m.usageCalls++
	return m.used, m.usageErr
}

func TestValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-24 * time.Hour)
	future := fixedNow.Add(24 * time.Hour)

	store := &catalog.Store{ID: "store-1", Slug: "acme"}
	member := profile.Profile{ID: "profile-1"}
	program := discount.Program{ID: "prog-1"}

	tests := []struct {
		name        string
		repo        *mockCouponRepo
		code        string
		profile     profile.Profile
		wantStatus  Status
		wantMessage string
	}{
		{
			name:        "blank code",
			repo:        &mockCouponRepo{},
			code:        "   ",
			profile:     member,
			wantStatus:  StatusNotApplied,
			wantMessage: "no coupon applied",
		},
		{
			name:        "unknown code",
			repo:        &mockCouponRepo{err: ErrNotFound},
			code:        "BOGUS",
			profile:     member,
			wantStatus:  StatusNotFound,
			wantMessage: "no coupon found with that code",
		},
		{
			name:        "inactive coupon",
			repo:        &mockCouponRepo{coupon: &Coupon{ID: "c", Code: "OFF", Program: program}},
			code:        "OFF",
			profile:     member,
			wantStatus:  StatusInactive,
			wantMessage: "coupon is not active anymore",
		},
		{
			name:        "not started yet",
			repo:        &mockCouponRepo{coupon: &Coupon{ID: "c", Code: "OFF", Active: true, StartDate: &future}},
			code:        "OFF",
			profile:     member,
			wantStatus:  StatusNotStarted,
			wantMessage: "coupon from future is not supported",
		},
		{
			name:        "expired",
			repo:        &mockCouponRepo{coupon: &Coupon{ID: "c", Code: "OFF", Active: true, EndDate: &past}},
			code:        "OFF",
			profile:     member,
			wantStatus:  StatusExpired,
			wantMessage: "coupon already expired",
		},
		{
			name:        "end date is exclusive",
			repo:        &mockCouponRepo{coupon: &Coupon{ID: "c", Code: "OFF", Active: true, EndDate: &fixedNow}},
			code:        "OFF",
			profile:     member,
			wantStatus:  StatusExpired,
			wantMessage: "coupon already expired",
		},
		{
			name:        "expired and already used reports expired",
			repo:        &mockCouponRepo{coupon: &Coupon{ID: "c", Code: "OFF", Active: true, EndDate: &past}, used: 3},
			code:        "OFF",
			profile:     member,
			wantStatus:  StatusExpired,
			wantMessage: "coupon already expired",
		},
		{
			name:        "already used",
			repo:        &mockCouponRepo{coupon: &Coupon{ID: "c", Code: "OFF", Active: true}, used: 1},
			code:        "OFF",
			profile:     member,
			wantStatus:  StatusUsed,
			wantMessage: "this coupon has already been used",
		},
		{
			name:        "used below per-profile limit",
			repo:        &mockCouponRepo{coupon: &Coupon{ID: "c", Code: "OFF", Active: true, MaxUsesPerProfile: 3, Program: program}, used: 2},
			code:        "OFF",
			profile:     member,
			wantStatus:  StatusApplied,
			wantMessage: "coupon applied successfully",
		},
		{
			name:        "anonymous profile skips usage check",
			repo:        &mockCouponRepo{coupon: &Coupon{ID: "c", Code: "OFF", Active: true, Program: program}, used: 5},
			code:        "OFF",
			profile:     profile.Anonymous,
			wantStatus:  StatusApplied,
			wantMessage: "coupon applied successfully",
		},
		{
			name: "within window",
			repo: &mockCouponRepo{coupon: &Coupon{
				ID: "c", Code: "OFF", Active: true, StartDate: &past, EndDate: &future, Program: program,
			}},
			code:        " OFF ",
			profile:     member,
			wantStatus:  StatusApplied,
			wantMessage: "coupon applied successfully",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), store, tt.code, tt.profile)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantMessage, got.Message)
			if tt.wantStatus == StatusApplied {
				require.NotNil(t, got.Coupon)
				assert.True(t, got.Valid())
				assert.Equal(t, "store-1/OFF", tt.repo.lookedUp)
			} else {
				assert.Nil(t, got.Coupon)
				assert.False(t, got.Valid())
			}
		})
	}
}

func TestValidator_Idempotent(t *testing.T) {
	repo := &mockCouponRepo{coupon: &Coupon{ID: "c", Code: "OFF", Active: true}}
	v := NewValidator(repo)
	store := &catalog.Store{ID: "s"}
	p := profile.Profile{ID: "p"}

	first, err := v.Validate(context.Background(), store, "OFF", p)
	require.NoError(t, err)
	second, err := v.Validate(context.Background(), store, "OFF", p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, repo.usageCalls)
}

func TestValidator_RepositoryErrors(t *testing.T) {
	store := &catalog.Store{ID: "s"}
	p := profile.Profile{ID: "p"}

	v := NewValidator(&mockCouponRepo{err: errors.New("db down")})
	_, err := v.Validate(context.Background(), store, "OFF", p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")

	v = NewValidator(&mockCouponRepo{
		coupon:   &Coupon{ID: "c", Code: "OFF", Active: true},
		usageErr: errors.New("db down"),
	})
	_, err = v.Validate(context.Background(), store, "OFF", p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count coupon usage")
}
