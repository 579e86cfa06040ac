package handler

import (
	"context"
	"net/http"

	"github.com/escrowd/escrowd/internal/adapter/http/dto"
	"github.com/escrowd/escrowd/internal/usecase"
)

// ConsistencyService defines the behavior needed for the conservation check.
type ConsistencyService interface {
	CheckConsistency(ctx context.Context) (*usecase.ConsistencyResult, error)
}

// LedgerHandler serves ledger metadata and the conservation check.
type LedgerHandler struct {
	consistencyUC ConsistencyService
	metadata      dto.LedgerMetadata
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(consistencyUC ConsistencyService, metadata dto.LedgerMetadata) *LedgerHandler {
	return &LedgerHandler{consistencyUC: consistencyUC, metadata: metadata}
}

// Metadata describes the ledger to connecting clients. Unauthenticated.
func (h *LedgerHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metadata)
}

// Consistency runs the ledger-wide conservation check. Admin only.
func (h *LedgerHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	if !principal.IsAdmin {
		writeError(w, http.StatusForbidden, errUnauthorized, "only admins may run the consistency check")
		return
	}

	result, err := h.consistencyUC.CheckConsistency(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromResult(result))
}
