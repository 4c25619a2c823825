// Package handler exposes the pricing engine over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/checkout-pricing/internal/domain/auth"
	"github.com/xenking/checkout-pricing/internal/domain/cart"
	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/membership"
	"github.com/xenking/checkout-pricing/internal/domain/pricing"
	"github.com/xenking/checkout-pricing/internal/domain/profile"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20

// Pricer prices carts without persisting them.
type Pricer interface {
	Price(ctx context.Context, req pricing.Request) (*pricing.Result, error)
}

// Carts prices and persists carts.
type Carts interface {
	Add(ctx context.Context, req pricing.Request) (*cart.Cart, *pricing.Result, error)
	Get(ctx context.Context, id string) (*cart.Cart, error)
}

// Memberships resolves membership validity.
type Memberships interface {
	Resolve(ctx context.Context, store *catalog.Store, p profile.Profile) (membership.Resolution, error)
}

// Stores looks stores up by slug.
type Stores interface {
	GetStoreBySlug(ctx context.Context, slug string) (*catalog.Store, error)
}

// Authenticator checks API keys.
type Authenticator interface {
	Authenticate(ctx context.Context, raw, scope string) (*auth.Key, error)
}

// Handler serves the pricing API.
type Handler struct {
	pricer      Pricer
	carts       Carts
	memberships Memberships
	stores      Stores
	authn       Authenticator
}

// New creates a Handler.
func New(pricer Pricer, carts Carts, memberships Memberships, stores Stores, authn Authenticator) *Handler {
	return &Handler{
		pricer:      pricer,
		carts:       carts,
		memberships: memberships,
		stores:      stores,
		authn:       authn,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/payment-summary", h.secured(auth.ScopePricingRead, h.PaymentSummary))
	mux.Handle("POST /api/cart", h.secured(auth.ScopeCartWrite, h.AddToCart))
	mux.Handle("GET /api/cart/{id}", h.secured(auth.ScopePricingRead, h.GetCart))
	mux.Handle("GET /api/membership", h.secured(auth.ScopePricingRead, h.Membership))
}
