// Package web provides the JSON API over the ledger services.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/meterpay/meterpay/adapters/auth"
	"github.com/meterpay/meterpay/adapters/metrics"
	"github.com/meterpay/meterpay/app"
	"github.com/meterpay/meterpay/domain/approval"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/ports"
)

// Handler provides the ledger API endpoints.
type Handler struct {
	credits    *app.CreditsService
	usage      *app.UsageService
	approvals  *app.ApprovalService
	settlement *app.SettlementService
	listings   *app.ListingService
	admin      *app.AdminService
	params     *app.ParamsHolder
	authSvc    *auth.Service
	audit      ports.AuditLog
	logger     zerolog.Logger
	metrics    *metrics.Collector
}

// Deps contains dependencies for the API handler.
type Deps struct {
	Credits    *app.CreditsService
	Usage      *app.UsageService
	Approvals  *app.ApprovalService
	Settlement *app.SettlementService
	Listings   *app.ListingService
	Admin      *app.AdminService
	Params     *app.ParamsHolder
	Auth       *auth.Service
	Audit      ports.AuditLog
	Logger     zerolog.Logger
	Metrics    *metrics.Collector
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		credits:    deps.Credits,
		usage:      deps.Usage,
		approvals:  deps.Approvals,
		settlement: deps.Settlement,
		listings:   deps.Listings,
		admin:      deps.Admin,
		params:     deps.Params,
		authSvc:    deps.Auth,
		audit:      deps.Audit,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(h.requestLogger)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)

		// Credits
		r.Get("/credits/balance", h.CreditBalance)
		r.Post("/credits/deposit", h.Deposit)
		r.Post("/credits/withdraw", h.WithdrawCredits)

		// Usage reporting
		r.Post("/usage/report", h.ReportUsage)

		// Listings
		r.Get("/listings", h.ListListings)
		r.Post("/listings", h.CreateListing)
		r.Get("/listings/{id}", h.GetListing)
		r.Put("/listings/{id}", h.UpdateListing)
		r.Delete("/listings/{id}", h.DeleteListing)

		// Per-listing ledger state
		r.Get("/listings/{id}/owed", h.TotalOwed)
		r.Get("/listings/{id}/owed/{buyer}", h.Owed)
		r.Get("/listings/{id}/buyers", h.Buyers)
		r.Get("/listings/{id}/stats/{buyer}", h.BuyerStat)

		// Approvals
		r.Get("/listings/{id}/approvals/{buyer}", h.GetApproval)
		r.Put("/listings/{id}/approvals/{buyer}", h.Approve)
		r.Post("/listings/{id}/approvals/{buyer}/anchor", h.ApproveWithFirstUse)

		// Settlement
		r.Post("/listings/{id}/settle", h.SettleListing)
		r.Post("/listings/{id}/settle/{buyer}", h.SettleBuyer)

		// Fees
		r.Get("/fees/pool", h.FeePool)
		r.Post("/fees/withdraw", h.WithdrawFees)

		// Administration (owner-only, enforced by the services)
		r.Get("/admin/params", h.GetParams)
		r.Put("/admin/reporter", h.SetReporter)
		r.Put("/admin/withdraw-address", h.SetWithdrawAddress)
		r.Put("/admin/fee-rate", h.SetFeeRate)
		r.Put("/admin/reward", h.SetReward)
		r.Put("/admin/window", h.SetDefaultWindow)
		r.Post("/admin/keys", h.CreateKey)
		r.Get("/audit", h.AuditRecent)
	})

	return r
}

// Healthz reports liveness. Mounted outside the authenticated group.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// writeServiceError maps domain sentinel errors to HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, ledger.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
	case errors.Is(err, ledger.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "insufficient_balance", err.Error())
	case errors.Is(err, ledger.ErrListingNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, money.ErrOverflow):
		writeError(w, http.StatusBadRequest, "overflow", err.Error())
	case errors.Is(err, approval.ErrAlreadyAnchored):
		writeError(w, http.StatusConflict, "window_already_anchored", err.Error())
	default:
		h.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal error")
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func parseIntQuery(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// requestLogger logs each request and records request metrics.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("elapsed", elapsed).
			Msg("request")

		if h.metrics != nil {
			status := strconv.Itoa(sw.status)
			h.metrics.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			h.metrics.RequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(elapsed.Seconds())
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
