package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/escrowd/escrowd/internal/adapter/http/dto"
	"github.com/escrowd/escrowd/internal/domain"
)

// Fulfillments never change once a transfer has executed, so cached reads
// can live for a long time.
const fulfillmentCacheTTL = 24 * time.Hour

// TransferService defines the behavior needed by TransferHandler.
type TransferService interface {
	PrepareTransfer(ctx context.Context, transfer *domain.Transfer, principal domain.Principal) (*domain.Transfer, error)
	FulfillTransfer(ctx context.Context, id, fulfillment string, principal domain.Principal) (*domain.Transfer, error)
	RejectTransferCredit(ctx context.Context, id string, message *domain.RejectionMessage, principal domain.Principal) (*domain.Transfer, error)
	GetTransfer(ctx context.Context, id string) (*domain.Transfer, error)
}

// FulfillmentCache caches fulfillments of executed transfers.
type FulfillmentCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	transferUC TransferService
	cache      FulfillmentCache
}

// NewTransferHandler creates a new TransferHandler. The cache is optional.
func NewTransferHandler(transferUC TransferService, cache FulfillmentCache) *TransferHandler {
	return &TransferHandler{transferUC: transferUC, cache: cache}
}

// Put proposes a transfer under the client-assigned id in the URL.
// Resubmitting an identical body is an idempotent success.
func (h *TransferHandler) Put(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	var req dto.TransferResource
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errUnprocessable, "invalid request body")
		return
	}

	if req.ID != "" && req.ID != id {
		writeError(w, http.StatusBadRequest, errUnprocessable, "transfer id in body must match the URL")
		return
	}

	transfer, err := h.transferUC.PrepareTransfer(r.Context(), req.ToDomain(id), principal)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransferFromDomain(transfer))
}

// Get retrieves a transfer by id.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := principalOr401(w, r); !ok {
		return
	}

	transfer, err := h.transferUC.GetTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransferFromDomain(transfer))
}

// PutFulfillment submits the condition preimage for a prepared transfer. The
// body is the bare base64url fulfillment, not JSON. Any authenticated party
// may deliver a valid fulfillment.
func (h *TransferHandler) PutFulfillment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, errUnprocessable, "unreadable request body")
		return
	}

	fulfillment := strings.TrimSpace(string(body))
	if fulfillment == "" {
		writeError(w, http.StatusUnprocessableEntity, errUnprocessable, "fulfillment must not be empty")
		return
	}

	transfer, err := h.transferUC.FulfillTransfer(r.Context(), id, fulfillment, principal)
	if err != nil {
		respondError(w, err)
		return
	}

	if h.cache != nil {
		h.cache.Set(r.Context(), fulfillmentKey(id), transfer.Fulfillment, fulfillmentCacheTTL)
	}

	writeJSON(w, http.StatusOK, dto.TransferFromDomain(transfer))
}

// GetFulfillment returns the fulfillment of an executed transfer as plain
// text.
func (h *TransferHandler) GetFulfillment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := principalOr401(w, r); !ok {
		return
	}

	if h.cache != nil {
		if cached, err := h.cache.Get(r.Context(), fulfillmentKey(id)); err == nil && cached != "" {
			writeFulfillment(w, cached)
			return
		}
	}

	transfer, err := h.transferUC.GetTransfer(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	if transfer.Fulfillment == "" {
		writeError(w, http.StatusNotFound, errNotFound, "this transfer has no fulfillment")
		return
	}

	if h.cache != nil {
		h.cache.Set(r.Context(), fulfillmentKey(id), transfer.Fulfillment, fulfillmentCacheTTL)
	}

	writeFulfillment(w, transfer.Fulfillment)
}

// PutRejection rejects the authenticated principal's credit on the transfer.
// The body is the structured rejection message, echoed back on success.
func (h *TransferHandler) PutRejection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	var message domain.RejectionMessage
	if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
		writeError(w, http.StatusBadRequest, errUnprocessable, "invalid request body")
		return
	}

	if _, err := h.transferUC.RejectTransferCredit(r.Context(), id, &message, principal); err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, message)
}

func fulfillmentKey(id string) string {
	return "fulfillment:" + id
}

func writeFulfillment(w http.ResponseWriter, fulfillment string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fulfillment))
}
