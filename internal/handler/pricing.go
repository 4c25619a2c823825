package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/checkout-pricing/internal/domain/profile"
)

// PaymentSummary prices a cart payload without persisting it.
func (h *Handler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	req, err := readPricingRequest(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.pricer.Price(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeSummary(&e, "", res)
	writeJSON(w, http.StatusOK, &e)
}

// AddToCart prices a cart payload and persists the snapshot.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	req, err := readPricingRequest(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, res, err := h.carts.Add(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeSummary(&e, c.ID, res)
	writeJSON(w, http.StatusCreated, &e)
}

// GetCart returns a persisted cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCart(&e, c)
	writeJSON(w, http.StatusOK, &e)
}

// Membership reports the membership validity of a profile in a store. With
// strict=true a profile without a valid membership is rejected.
func (h *Handler) Membership(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	slug := strings.TrimSpace(q.Get("store"))
	if slug == "" {
		h.fail(w, r, badRequest("store is required"))
		return
	}
	strict := false
	if s := q.Get("strict"); s != "" {
		var err error
		if strict, err = strconv.ParseBool(s); err != nil {
			h.fail(w, r, badRequest("invalid strict flag %q", s))
			return
		}
	}

	ctx := r.Context()
	store, err := h.stores.GetStoreBySlug(ctx, slug)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.memberships.Resolve(ctx, store, profile.Profile{ID: q.Get("profile")})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if strict {
		if err := res.Require(); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	var e jx.Encoder
	encodeMembership(&e, res)
	writeJSON(w, http.StatusOK, &e)
}
