package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
)

// ListingRequest creates or updates a listing. The authenticated caller
// becomes (or must be) the seller.
type ListingRequest struct {
	Name         string       `json:"name"`
	Hostname     string       `json:"hostname"`
	DocsURL      string       `json:"docs_url,omitempty"`
	PricePerCall money.Amount `json:"price_per_call"`
}

// ListingResponse represents a listing in API responses.
type ListingResponse struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Hostname     string         `json:"hostname"`
	DocsURL      string         `json:"docs_url,omitempty"`
	PricePerCall money.Amount   `json:"price_per_call"`
	Seller       ledger.Address `json:"seller"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func listingResponse(l ledger.Listing) ListingResponse {
	return ListingResponse{
		ID:           l.ID,
		Name:         l.Name,
		Hostname:     l.Hostname,
		DocsURL:      l.DocsURL,
		PricePerCall: l.PricePerCall,
		Seller:       l.Seller,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

// ListListings returns all listings.
func (h *Handler) ListListings(w http.ResponseWriter, r *http.Request) {
	all, err := h.listings.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	out := make([]ListingResponse, 0, len(all))
	for _, l := range all {
		out = append(out, listingResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"listings": out})
}

// GetListing returns a single listing.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(l))
}

// CreateListing registers a new listing sold by the caller.
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req ListingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	l, err := h.listings.Create(r.Context(), caller, req.Name, req.Hostname, req.DocsURL, req.PricePerCall)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listingResponse(l))
}

// UpdateListing updates a listing. Only the seller may change it.
func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req ListingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	l, err := h.listings.Update(r.Context(), caller, chi.URLParam(r, "id"), req.Name, req.Hostname, req.DocsURL, req.PricePerCall)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(l))
}

// DeleteListing removes a listing. The seller or the owner may delete.
func (h *Handler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := h.listings.Delete(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
