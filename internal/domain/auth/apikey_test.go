package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockKeyRepo struct {
	keys map[string]*Key
	err  error
}

func (m *mockKeyRepo) FindByHash(_ context.Context, hash string) (*Key, error) {
	if m.err != nil {
		return nil, m.err
	}
	k, ok := m.keys[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return k, nil
}

func TestAuthenticator_Authenticate(t *testing.T) {
	pepper := []byte("pepper")
	a := NewAuthenticator(nil, pepper)
	readerHash := a.Hash("reader-key")
	adminHash := a.Hash("admin-key")

	repo := &mockKeyRepo{keys: map[string]*Key{
		readerHash: {ID: "k1", Hash: readerHash, Name: "reader", Scopes: []string{ScopePricingRead}},
		adminHash:  {ID: "k2", Hash: adminHash, Name: "admin", Scopes: []string{"*"}},
		// Row returned for a lookup hash that it does not actually carry.
		a.Hash("stale-key"): {ID: "k3", Hash: readerHash, Scopes: []string{"*"}},
	}}
	a = NewAuthenticator(repo, pepper)

	tests := []struct {
		name    string
		raw     string
		scope   string
		wantID  string
		wantErr error
	}{
		{"reader reads", "reader-key", ScopePricingRead, "k1", nil},
		{"reader cannot write", "reader-key", ScopeCartWrite, "", ErrForbidden},
		{"wildcard scope", "admin-key", ScopeCartWrite, "k2", nil},
		{"surrounding whitespace ignored", "  reader-key ", ScopePricingRead, "k1", nil},
		{"empty key", "", ScopePricingRead, "", ErrUnauthorized},
		{"unknown key", "nope", ScopePricingRead, "", ErrUnauthorized},
		{"hash mismatch", "stale-key", ScopePricingRead, "", ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Authenticate(context.Background(), tt.raw, tt.scope)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestAuthenticator_RepositoryError(t *testing.T) {
	a := NewAuthenticator(&mockKeyRepo{err: errors.New("db down")}, []byte("p"))
	_, err := a.Authenticate(context.Background(), "key", ScopePricingRead)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticator_HashIsStable(t *testing.T) {
	a := NewAuthenticator(nil, []byte("pepper"))
	assert.Equal(t, a.Hash("k"), a.Hash("k"))
	assert.NotEqual(t, a.Hash("k"), NewAuthenticator(nil, []byte("other")).Hash("k"))
	assert.Len(t, a.Hash("k"), 64)
}
