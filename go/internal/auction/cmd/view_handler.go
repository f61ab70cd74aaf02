package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidlive/go/clients/marketplace_client"
	"github.com/mcdev12/bidlive/go/internal/auction/view"
)

// ViewController is the part of the view controller the HTTP surface uses.
type ViewController interface {
	Current() view.ViewModel
	Show(ctx context.Context, auctionID int64) error
	Leave(ctx context.Context) error
	SubmitBid(ctx context.Context, amount int64) error
	RequestSnapshot(ctx context.Context) error
}

type showRequest struct {
	AuctionID int64 `json:"auctionId"`
}

type bidRequest struct {
	Amount int64 `json:"amount"`
}

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ViewHandler serves the current view over HTTP
type ViewHandler struct {
	controller ViewController
}

// NewViewHandler creates a new view handler
func NewViewHandler(controller ViewController) *ViewHandler {
	return &ViewHandler{controller: controller}
}

// HandleView handles GET, POST and DELETE /api/auctions/view
func (h *ViewHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.controller.Current())

	case http.MethodPost:
		var req showRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AuctionID <= 0 {
			writeJSON(w, http.StatusBadRequest, actionResponse{Message: "auctionId is required"})
			return
		}
		if err := h.controller.Show(r.Context(), req.AuctionID); err != nil {
			log.Error().Err(err).Int64("auction_id", req.AuctionID).Msg("failed to open auction view")
			writeJSON(w, http.StatusInternalServerError, actionResponse{Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, actionResponse{Success: true})

	case http.MethodDelete:
		if err := h.controller.Leave(r.Context()); err != nil {
			log.Error().Err(err).Msg("failed to close auction view")
			writeJSON(w, http.StatusInternalServerError, actionResponse{Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, actionResponse{Success: true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleBid handles POST /api/auctions/bids
func (h *ViewHandler) HandleBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, actionResponse{Message: "amount must be a positive integer"})
		return
	}

	if err := h.controller.SubmitBid(r.Context(), req.Amount); err != nil {
		writeJSON(w, bidErrorStatus(err), actionResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: true})
}

// HandleSnapshot handles POST /api/auctions/snapshot
func (h *ViewHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.controller.RequestSnapshot(r.Context()); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, view.ErrNoAuction) {
			status = http.StatusConflict
		}
		writeJSON(w, status, actionResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, actionResponse{Success: true})
}

// RegisterRoutes registers view routes
func (h *ViewHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auctions/view", h.HandleView)
	mux.HandleFunc("/api/auctions/bids", h.HandleBid)
	mux.HandleFunc("/api/auctions/snapshot", h.HandleSnapshot)
}

func bidErrorStatus(err error) int {
	var rejected *marketplace_client.BidRejectedError
	var below *view.BelowMinimumError
	switch {
	case errors.As(err, &rejected), errors.As(err, &below):
		return http.StatusUnprocessableEntity
	case errors.Is(err, view.ErrNoAuction), errors.Is(err, view.ErrNotLoaded), errors.Is(err, view.ErrBiddingClosed):
		return http.StatusConflict
	default:
		log.Error().Err(err).Msg("failed to submit bid")
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
