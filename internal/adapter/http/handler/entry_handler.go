package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/escrowd/escrowd/internal/adapter/http/dto"
	"github.com/escrowd/escrowd/internal/domain"
)

// EntryService defines the behavior needed by EntryHandler.
type EntryService interface {
	ListByTransfer(ctx context.Context, transferID string) ([]*domain.Entry, error)
	ListByAccount(ctx context.Context, account string, limit, offset int) ([]*domain.Entry, error)
}

// EntryHandler serves the balance movement history written by transfer
// transitions.
type EntryHandler struct {
	entries EntryService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(entries EntryService) *EntryHandler {
	return &EntryHandler{entries: entries}
}

// ListByTransfer lists the entries a transfer produced, oldest first.
func (h *EntryHandler) ListByTransfer(w http.ResponseWriter, r *http.Request) {
	if _, ok := principalOr401(w, r); !ok {
		return
	}

	entries, err := h.entries.ListByTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// ListByAccount lists an account's entries, newest first. Restricted to the
// account holder and admins.
func (h *EntryHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	if !principal.IsAdmin && principal.Name != name {
		writeError(w, http.StatusForbidden, errUnauthorized, "not authorized to read this account's entries")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	entries, err := h.entries.ListByAccount(r.Context(), name, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}
