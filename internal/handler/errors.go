package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/checkout-pricing/internal/domain/auth"
	"github.com/xenking/checkout-pricing/internal/domain/cart"
	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/membership"
	"github.com/xenking/checkout-pricing/internal/domain/pricing"
)

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

// statusOf maps domain errors to HTTP status codes and client messages.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, auth.ErrUnauthorized.Error()
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, auth.ErrForbidden.Error()
	case pricing.IsInvariant(err):
		return http.StatusInternalServerError, "internal server error"
	case errors.Is(err, pricing.ErrEmptyCart),
		errors.Is(err, pricing.ErrUnknownStore),
		errors.Is(err, membership.ErrMembershipInvalid),
		errors.Is(err, membership.ErrMembershipNotFound):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pricing.ErrNoProducts),
		errors.Is(err, catalog.ErrInvalidQuantity),
		errors.Is(err, catalog.ErrRelatedDepth):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, catalog.ErrStoreNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// fail writes the error response. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusOf(err)
	if code >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, code, &e)
}

func writeJSON(w http.ResponseWriter, code int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
