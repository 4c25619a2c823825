package membership

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/profile"
)

type mockMembershipRepo struct {
	programs []Program
	err      error
	calls    int
}

func (m *mockMembershipRepo) FindEnrolled(_ context.Context, _, _ string) ([]Program, error) {
	m.calls++
	return m.programs, m.err
}

func ptr(t time.Time) *time.Time { return &t }

func TestProgram_IsValidAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		program Program
		want    bool
	}{
		{"perpetual ignores dates", Program{Type: TypePerpetual, EndDate: ptr(now.Add(-time.Hour))}, true},
		{"inside window", Program{Type: TypeDateBased, StartDate: ptr(now.Add(-time.Hour)), EndDate: ptr(now.Add(time.Hour))}, true},
		{"start is inclusive", Program{Type: TypeDateBased, StartDate: ptr(now), EndDate: ptr(now.Add(time.Hour))}, true},
		{"end is exclusive", Program{Type: TypeDateBased, StartDate: ptr(now.Add(-time.Hour)), EndDate: ptr(now)}, false},
		{"not started", Program{Type: TypeDateBased, StartDate: ptr(now.Add(time.Hour))}, false},
		{"open ended", Program{Type: TypeDateBased, StartDate: ptr(now.Add(-time.Hour))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.program.IsValidAt(now))
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &catalog.Store{ID: "store-1"}
	member := profile.Profile{ID: "p-1"}

	expired := Program{ID: "expired", Type: TypeDateBased, EndDate: ptr(now.Add(-time.Hour))}
	active := Program{ID: "active", Type: TypeDateBased, EndDate: ptr(now.Add(time.Hour))}

	tests := []struct {
		name        string
		repo        *mockMembershipRepo
		profile     profile.Profile
		wantStatus  Status
		wantProgram string
		wantErr     error
		wantCalls   int
	}{
		{
			name:       "anonymous",
			repo:       &mockMembershipRepo{programs: []Program{active}},
			profile:    profile.Anonymous,
			wantStatus: StatusNotFound,
			wantErr:    ErrMembershipNotFound,
		},
		{
			name:       "not enrolled",
			repo:       &mockMembershipRepo{},
			profile:    member,
			wantStatus: StatusNotFound,
			wantErr:    ErrMembershipNotFound,
			wantCalls:  1,
		},
		{
			name:        "enrolled but expired",
			repo:        &mockMembershipRepo{programs: []Program{expired}},
			profile:     member,
			wantStatus:  StatusInvalid,
			wantProgram: "expired",
			wantErr:     ErrMembershipInvalid,
			wantCalls:   1,
		},
		{
			name:        "first valid program wins",
			repo:        &mockMembershipRepo{programs: []Program{expired, active}},
			profile:     member,
			wantStatus:  StatusValid,
			wantProgram: "active",
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.repo)
			r.now = func() time.Time { return now }

			got, err := r.Resolve(context.Background(), store, tt.profile)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantCalls, tt.repo.calls)
			if tt.wantProgram != "" {
				require.NotNil(t, got.Program)
				assert.Equal(t, tt.wantProgram, got.Program.ID)
			} else {
				assert.Nil(t, got.Program)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, got.Require(), tt.wantErr)
			} else {
				assert.NoError(t, got.Require())
			}
		})
	}
}

func TestResolver_RepositoryError(t *testing.T) {
	r := NewResolver(&mockMembershipRepo{err: errors.New("connection refused")})
	_, err := r.Resolve(context.Background(), &catalog.Store{ID: "s"}, profile.Profile{ID: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find enrolled memberships")
}
