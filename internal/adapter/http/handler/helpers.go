package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/escrowd/escrowd/internal/adapter/http/dto"
	"github.com/escrowd/escrowd/internal/domain"
)

// Stable error identifiers surfaced in error envelopes.
const (
	errUnauthorized        = "UnauthorizedError"
	errNotFound            = "NotFoundError"
	errUnprocessable       = "UnprocessableEntityError"
	errInsufficientFunds   = "InsufficientFundsError"
	errUnmetCondition      = "UnmetConditionError"
	errInvalidModification = "InvalidModificationError"
	errConflict            = "ConflictError"
	errInternal            = "InternalServerError"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error envelope.
func writeError(w http.ResponseWriter, status int, id, message string) {
	writeJSON(w, status, dto.ErrorResponse{ID: id, Message: message})
}

// respondError maps a domain error onto the wire taxonomy and writes it.
// Authorization failures carry the message of the specific rule that was
// violated rather than a generic denial.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRejectUnauthorized):
		writeError(w, http.StatusForbidden, errUnauthorized, "Invalid attempt to reject credit")
	case errors.Is(err, domain.ErrDebitUnauthorized), errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, errUnauthorized, err.Error())
	case errors.Is(err, domain.ErrTransferNotFound), errors.Is(err, domain.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, errNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidModification):
		writeError(w, http.StatusBadRequest, errInvalidModification, "Transfer may not be modified in this way")
	case errors.Is(err, domain.ErrUnmetCondition):
		writeError(w, http.StatusUnprocessableEntity, errUnmetCondition, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, errInsufficientFunds, err.Error())
	case errors.Is(err, domain.ErrNotBalanced),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrUnprocessable):
		writeError(w, http.StatusUnprocessableEntity, errUnprocessable, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, errConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, errInternal, "an unexpected error occurred")
	}
}

// principalOr401 extracts the authenticated principal, failing the request
// when there is none.
func principalOr401(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	principal, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="ledger"`)
		writeError(w, http.StatusUnauthorized, errUnauthorized, "authentication required")
		return domain.Principal{}, false
	}
	return principal, true
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}
