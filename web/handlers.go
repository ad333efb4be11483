package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meterpay/meterpay/app"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
)

// -----------------------------------------------------------------------------
// Credits
// -----------------------------------------------------------------------------

// AmountRequest is a request carrying a single amount.
type AmountRequest struct {
	Amount money.Amount `json:"amount"`
}

// BalanceResponse reports a credit balance.
type BalanceResponse struct {
	Address ledger.Address `json:"address"`
	Balance money.Amount   `json:"balance"`
}

// CreditBalance returns the caller's credit balance.
func (h *Handler) CreditBalance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	balance, err := h.credits.Balance(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{Address: caller, Balance: balance})
}

// Deposit adds credits to the caller's balance.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req AmountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.credits.Deposit(r.Context(), caller, req.Amount); err != nil {
		h.writeServiceError(w, err)
		return
	}

	balance, err := h.credits.Balance(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Address: caller, Balance: balance})
}

// WithdrawCredits removes credits from the caller's balance and sends
// the value back out.
func (h *Handler) WithdrawCredits(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req AmountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.credits.Withdraw(r.Context(), caller, req.Amount); err != nil {
		h.writeServiceError(w, err)
		return
	}

	balance, err := h.credits.Balance(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Address: caller, Balance: balance})
}

// -----------------------------------------------------------------------------
// Usage
// -----------------------------------------------------------------------------

// ReportUsageRequest records metered calls for a buyer against a listing.
type ReportUsageRequest struct {
	ListingID string         `json:"listing_id"`
	Buyer     ledger.Address `json:"buyer"`
	NumCalls  uint64         `json:"num_calls"`
}

// OwedResponse reports an owed amount.
type OwedResponse struct {
	ListingID string         `json:"listing_id"`
	Buyer     ledger.Address `json:"buyer,omitempty"`
	Owed      money.Amount   `json:"owed"`
}

// ReportUsage accrues owed credit for a buyer on a listing.
func (h *Handler) ReportUsage(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req ReportUsageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.usage.ReportUsage(r.Context(), caller, req.ListingID, req.NumCalls, req.Buyer); err != nil {
		h.writeServiceError(w, err)
		return
	}

	owed, err := h.usage.Owed(r.Context(), req.ListingID, req.Buyer)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OwedResponse{ListingID: req.ListingID, Buyer: req.Buyer, Owed: owed})
}

// Owed returns the amount one buyer owes a listing.
func (h *Handler) Owed(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")
	buyer := ledger.Address(chi.URLParam(r, "buyer"))

	owed, err := h.usage.Owed(r.Context(), listingID, buyer)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OwedResponse{ListingID: listingID, Buyer: buyer, Owed: owed})
}

// TotalOwed returns the aggregate owed across all buyers of a listing.
func (h *Handler) TotalOwed(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")

	total, err := h.usage.TotalOwed(r.Context(), listingID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OwedResponse{ListingID: listingID, Owed: total})
}

// Buyers returns the listing's working set: buyers with outstanding owed.
func (h *Handler) Buyers(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")

	buyers, err := h.usage.Buyers(r.Context(), listingID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if buyers == nil {
		buyers = []ledger.Address{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"listing_id": listingID,
		"buyers":     buyers,
	})
}

// BuyerStatResponse reports lifetime settlement statistics for a buyer.
type BuyerStatResponse struct {
	ListingID                string         `json:"listing_id"`
	Buyer                    ledger.Address `json:"buyer"`
	Overdrafted              bool           `json:"overdrafted"`
	OverdraftCount           uint64         `json:"overdraft_count"`
	LifetimeCreditsUsed      money.Amount   `json:"lifetime_credits_used"`
	LifetimeExceededApproval uint64         `json:"lifetime_exceeded_approval"`
}

// BuyerStat returns settlement statistics for one buyer on a listing.
func (h *Handler) BuyerStat(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")
	buyer := ledger.Address(chi.URLParam(r, "buyer"))

	stat, err := h.settlement.BuyerStat(r.Context(), listingID, buyer)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BuyerStatResponse{
		ListingID:                listingID,
		Buyer:                    buyer,
		Overdrafted:              stat.Overdrafted,
		OverdraftCount:           stat.OverdraftCount,
		LifetimeCreditsUsed:      stat.LifetimeCreditsUsed,
		LifetimeExceededApproval: stat.LifetimeExceededApproval,
	})
}

// -----------------------------------------------------------------------------
// Approvals
// -----------------------------------------------------------------------------

// ApproveRequest sets a buyer's per-second spend rate for a listing.
type ApproveRequest struct {
	RatePerSecond money.Amount `json:"rate_per_second"`
	FirstUse      int64        `json:"first_use,omitempty"` // unix seconds
}

// ApprovalResponse describes a buyer's approval and its effective cap.
type ApprovalResponse struct {
	ListingID     string         `json:"listing_id"`
	Buyer         ledger.Address `json:"buyer"`
	RatePerSecond money.Amount   `json:"rate_per_second"`
	Anchor        *time.Time     `json:"anchor,omitempty"`
	EffectiveCap  money.Amount   `json:"effective_cap"`
}

// GetApproval returns a buyer's approval and the cap it allows right now.
func (h *Handler) GetApproval(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")
	buyer := ledger.Address(chi.URLParam(r, "buyer"))

	a, err := h.approvals.Get(r.Context(), listingID, buyer)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	capNow, err := h.approvals.EffectiveCap(r.Context(), listingID, buyer)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ApprovalResponse{
		ListingID:     listingID,
		Buyer:         buyer,
		RatePerSecond: a.RatePerSecond,
		Anchor:        a.Anchor,
		EffectiveCap:  capNow,
	})
}

// Approve sets the buyer's approval rate, preserving any anchor.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	listingID := chi.URLParam(r, "id")
	buyer := ledger.Address(chi.URLParam(r, "buyer"))

	var req ApproveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.approvals.Approve(r.Context(), caller, listingID, buyer, req.RatePerSecond); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.GetApproval(w, r)
}

// ApproveWithFirstUse sets the rate and anchors the window at first_use.
// Fails once the window is already anchored.
func (h *Handler) ApproveWithFirstUse(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	listingID := chi.URLParam(r, "id")
	buyer := ledger.Address(chi.URLParam(r, "buyer"))

	var req ApproveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.FirstUse <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "first_use must be a positive unix timestamp")
		return
	}

	firstUse := time.Unix(req.FirstUse, 0).UTC()
	if err := h.approvals.ApproveWithFirstUse(r.Context(), caller, listingID, buyer, req.RatePerSecond, firstUse); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.GetApproval(w, r)
}

// -----------------------------------------------------------------------------
// Settlement
// -----------------------------------------------------------------------------

// SpendResponse describes the outcome for one buyer within a settlement.
type SpendResponse struct {
	Buyer            ledger.Address `json:"buyer"`
	Spent            money.Amount   `json:"spent"`
	Overdrafted      bool           `json:"overdrafted"`
	ExceededApproval bool           `json:"exceeded_approval"`
}

// SettlementResponse describes a completed settlement.
type SettlementResponse struct {
	ListingID    string          `json:"listing_id"`
	Seller       ledger.Address  `json:"seller"`
	TotalSettled money.Amount    `json:"total_settled"`
	Fee          money.Amount    `json:"fee"`
	Payout       money.Amount    `json:"payout"`
	Reward       money.Amount    `json:"reward"`
	BuyersPaid   int             `json:"buyers_paid"`
	Spends       []SpendResponse `json:"spends"`
}

func settlementResponse(res app.Result) SettlementResponse {
	out := SettlementResponse{
		ListingID:    res.ListingID,
		Seller:       res.Seller,
		TotalSettled: res.TotalSettled,
		Fee:          res.Fee,
		Payout:       res.Payout,
		Reward:       res.Reward,
		BuyersPaid:   res.BuyersPaid,
		Spends:       make([]SpendResponse, 0, len(res.Spends)),
	}
	for _, sp := range res.Spends {
		out.Spends = append(out.Spends, SpendResponse{
			Buyer:            sp.Buyer,
			Spent:            sp.Spent,
			Overdrafted:      sp.Overdrafted,
			ExceededApproval: sp.ExceededApproval,
		})
	}
	return out
}

// SettleListing settles every buyer in the listing's working set.
func (h *Handler) SettleListing(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	listingID := chi.URLParam(r, "id")

	res, err := h.settlement.SettleListing(r.Context(), listingID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementResponse(res))
}

// SettleBuyer settles a single buyer of a listing.
func (h *Handler) SettleBuyer(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	listingID := chi.URLParam(r, "id")
	buyer := ledger.Address(chi.URLParam(r, "buyer"))

	res, err := h.settlement.SettleBuyer(r.Context(), listingID, buyer)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementResponse(res))
}

// -----------------------------------------------------------------------------
// Fees
// -----------------------------------------------------------------------------

// FeePool returns the accumulated network fee pool.
func (h *Handler) FeePool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.settlement.FeePool(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]money.Amount{"fee_pool": pool})
}

// WithdrawFees sends accumulated fees to the withdraw address.
func (h *Handler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req AmountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.settlement.WithdrawFees(r.Context(), caller, req.Amount); err != nil {
		h.writeServiceError(w, err)
		return
	}

	pool, err := h.settlement.FeePool(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]money.Amount{"fee_pool": pool})
}
