package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/escrowd/escrowd/internal/adapter/http/dto"
	"github.com/escrowd/escrowd/internal/domain"
	"github.com/escrowd/escrowd/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	CreateAccount(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, name string) (*domain.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accountUC AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountUC AccountService) *AccountHandler {
	return &AccountHandler{accountUC: accountUC}
}

// Put provisions an account under the name in the URL. Admin only.
func (h *AccountHandler) Put(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	if !principal.IsAdmin {
		writeError(w, http.StatusForbidden, errUnauthorized, "only admins may create accounts")
		return
	}

	var req dto.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errUnprocessable, "invalid request body")
		return
	}

	input, err := req.ToUseCaseInput(name)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, errUnprocessable, "invalid minimum_allowed_balance")
		return
	}

	account, err := h.accountUC.CreateAccount(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account, true))
}

// Get retrieves an account by name. Balance fields are visible only to the
// holder and admins.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	account, err := h.accountUC.GetAccount(r.Context(), name)
	if err != nil {
		respondError(w, err)
		return
	}

	includeBalance := principal.IsAdmin || principal.Name == account.Name
	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account, includeBalance))
}

// List lists accounts with balances. Admin only.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	if !principal.IsAdmin {
		writeError(w, http.StatusForbidden, errUnauthorized, "only admins may list accounts")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	accounts, err := h.accountUC.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountsFromDomain(accounts, true))
}
