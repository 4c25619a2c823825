// Package auth authenticates API clients by key.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

// Scopes granted to API keys.
const (
	ScopePricingRead = "pricing:read"
	ScopeCartWrite   = "cart:write"
	// ScopeAll grants every scope.
	ScopeAll = "*"
)

var (
	// ErrKeyNotFound is returned by a Repository when no active key matches.
	ErrKeyNotFound = errors.New("api key not found")
	// ErrUnauthorized is returned for missing, unknown or mismatched keys.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a valid key lacks the required scope.
	ErrForbidden = errors.New("forbidden")
)

// Key is a stored API key. Hash is the hex HMAC-SHA256 of the raw key.
type Key struct {
	ID     string
	Hash   string
	Name   string
	Scopes []string
}

// HasScope reports whether the key grants scope. ScopeAll grants every scope.
func (k *Key) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, ScopeAll) || slices.Contains(k.Scopes, scope)
}

// Repository looks up active API keys by hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Key, error)
}

// Authenticator verifies raw API keys against the repository.
type Authenticator struct {
	keys   Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator. pepper is the HMAC secret the
// stored hashes were computed with.
func NewAuthenticator(keys Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Hash returns the hex HMAC-SHA256 of a raw key.
func (a *Authenticator) Hash(raw string) string {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate resolves a raw key and checks it grants scope.
func (a *Authenticator) Authenticate(ctx context.Context, raw, scope string) (*Key, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrUnauthorized
	}

	hash := a.Hash(raw)
	key, err := a.keys.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "find api key")
	}

	// The stored row must carry the hash we looked up.
	if subtle.ConstantTimeCompare([]byte(hash), []byte(key.Hash)) != 1 {
		return nil, ErrUnauthorized
	}
	if !key.HasScope(scope) {
		return nil, ErrForbidden
	}
	return key, nil
}
