package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/meterpay/meterpay/domain/ledger"
)

type ctxKey string

const ctxCallerKey ctxKey = "caller"

// CallerFrom returns the authenticated caller address from the context.
func CallerFrom(ctx context.Context) (ledger.Address, bool) {
	addr, ok := ctx.Value(ctxCallerKey).(ledger.Address)
	return addr, ok
}

// authMiddleware resolves the API key to a caller address. Keys are
// accepted in the X-API-Key header or as a Bearer token.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get("X-API-Key")
		if rawKey == "" {
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, "Bearer ") {
				rawKey = strings.TrimPrefix(ah, "Bearer ")
			}
		}
		if rawKey == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "API key required")
			return
		}

		addr, err := h.authSvc.Resolve(r.Context(), rawKey)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
			return
		}

		ctx := context.WithValue(r.Context(), ctxCallerKey, addr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// caller returns the authenticated address or writes a 401 and reports false.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (ledger.Address, bool) {
	addr, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "API key required")
		return "", false
	}
	return addr, true
}
