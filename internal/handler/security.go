package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// HeaderAPIKey carries the raw API key.
const HeaderAPIKey = "api_key"

// secured authenticates the api_key header for scope before calling next.
// The key name is added to the request logger.
func (h *Handler) secured(scope string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key, err := h.authn.Authenticate(ctx, r.Header.Get(HeaderAPIKey), scope)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		ctx = zctx.With(ctx, zap.String("api_key", key.Name))
		next(w, r.WithContext(ctx))
	})
}
