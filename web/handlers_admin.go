package web

import (
	"net/http"
	"time"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/domain/settlement"
)

// ParamsResponse reports the current runtime parameters.
type ParamsResponse struct {
	Owner             ledger.Address `json:"owner"`
	Reporter          ledger.Address `json:"reporter"`
	WithdrawAddress   ledger.Address `json:"withdraw_address"`
	FeeNumerator      money.Amount   `json:"fee_numerator"`
	FeeDenominator    money.Amount   `json:"fee_denominator"`
	RewardAmount      money.Amount   `json:"reward_amount"`
	RewardEnabled     bool           `json:"reward_enabled"`
	DefaultWindowSecs int64          `json:"default_window_secs"`
}

// GetParams returns the current runtime parameters.
func (h *Handler) GetParams(w http.ResponseWriter, r *http.Request) {
	p := h.admin.Params()
	writeJSON(w, http.StatusOK, ParamsResponse{
		Owner:             p.Owner,
		Reporter:          p.Reporter,
		WithdrawAddress:   p.WithdrawAddress,
		FeeNumerator:      p.FeeRate.Numerator,
		FeeDenominator:    p.FeeRate.Denominator,
		RewardAmount:      p.RewardAmount,
		RewardEnabled:     p.RewardEnabled,
		DefaultWindowSecs: int64(p.DefaultWindow / time.Second),
	})
}

// AddressRequest carries a single address.
type AddressRequest struct {
	Address ledger.Address `json:"address"`
}

// SetReporter changes the reporter address. Owner only.
func (h *Handler) SetReporter(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req AddressRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.admin.SetReporter(r.Context(), caller, req.Address); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.GetParams(w, r)
}

// SetWithdrawAddress changes the fee withdraw address. Owner only.
func (h *Handler) SetWithdrawAddress(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req AddressRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.admin.SetWithdrawAddress(r.Context(), caller, req.Address); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.GetParams(w, r)
}

// FeeRateRequest sets the network fee rate.
type FeeRateRequest struct {
	Numerator   money.Amount `json:"numerator"`
	Denominator money.Amount `json:"denominator"`
}

// SetFeeRate changes the network fee rate. Owner only.
func (h *Handler) SetFeeRate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req FeeRateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	rate := settlement.FeeRate{Numerator: req.Numerator, Denominator: req.Denominator}
	if err := h.admin.SetFeeRate(r.Context(), caller, rate); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.GetParams(w, r)
}

// RewardRequest sets the per-buyer settlement reward.
type RewardRequest struct {
	Amount  money.Amount `json:"amount"`
	Enabled bool         `json:"enabled"`
}

// SetReward changes the reward amount and switch. Owner only.
func (h *Handler) SetReward(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req RewardRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.admin.SetRewardAmount(r.Context(), caller, req.Amount); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if err := h.admin.SetRewardEnabled(r.Context(), caller, req.Enabled); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.GetParams(w, r)
}

// WindowRequest sets the default approval window.
type WindowRequest struct {
	Seconds int64 `json:"seconds"`
}

// SetDefaultWindow changes the default approval window. Owner only.
func (h *Handler) SetDefaultWindow(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req WindowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	window := time.Duration(req.Seconds) * time.Second
	if err := h.admin.SetDefaultWindow(r.Context(), caller, window); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.GetParams(w, r)
}

// -----------------------------------------------------------------------------
// API keys
// -----------------------------------------------------------------------------

// CreateKeyRequest issues an API key bound to an address.
type CreateKeyRequest struct {
	Address ledger.Address `json:"address"`
}

// CreateKeyResponse returns the raw key. It is shown exactly once.
type CreateKeyResponse struct {
	Address ledger.Address `json:"address"`
	Key     string         `json:"key"`
}

// CreateKey issues a new API key for an address. Owner only.
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if caller != h.params.Get().Owner {
		writeError(w, http.StatusForbidden, "unauthorized", "Only the owner may issue keys")
		return
	}

	var req CreateKeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Address.Zero() {
		writeError(w, http.StatusBadRequest, "invalid_address", "Address is required")
		return
	}

	rawKey, err := h.authSvc.Generate(r.Context(), req.Address)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateKeyResponse{Address: req.Address, Key: rawKey})
}

// -----------------------------------------------------------------------------
// Audit
// -----------------------------------------------------------------------------

// AuditRecordResponse represents an audit record in API responses.
type AuditRecordResponse struct {
	ID               string         `json:"id"`
	Type             string         `json:"type"`
	Timestamp        time.Time      `json:"timestamp"`
	ListingID        string         `json:"listing_id,omitempty"`
	Buyer            ledger.Address `json:"buyer,omitempty"`
	Seller           ledger.Address `json:"seller,omitempty"`
	Caller           ledger.Address `json:"caller,omitempty"`
	NumCalls         uint64         `json:"num_calls,omitempty"`
	Amount           money.Amount   `json:"amount,omitempty"`
	Fee              money.Amount   `json:"fee,omitempty"`
	Reward           money.Amount   `json:"reward,omitempty"`
	Overdrafted      bool           `json:"overdrafted,omitempty"`
	ExceededApproval bool           `json:"exceeded_approval,omitempty"`
	Note             string         `json:"note,omitempty"`
}

// AuditRecent returns the most recent audit records, newest first.
func (h *Handler) AuditRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)

	records, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	out := make([]AuditRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, AuditRecordResponse{
			ID:               rec.ID,
			Type:             string(rec.Type),
			Timestamp:        rec.Timestamp,
			ListingID:        rec.ListingID,
			Buyer:            rec.Buyer,
			Seller:           rec.Seller,
			Caller:           rec.Caller,
			NumCalls:         rec.NumCalls,
			Amount:           rec.Amount,
			Fee:              rec.Fee,
			Reward:           rec.Reward,
			Overdrafted:      rec.Overdrafted,
			ExceededApproval: rec.ExceededApproval,
			Note:             rec.Note,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": out})
}
