// internal/api/handler/account.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"finflow-ledger/internal/api/middleware"
	"finflow-ledger/internal/api/types"
	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/service"
	"finflow-ledger/internal/util"
)

// AccountHandler handles account lifecycle requests.
type AccountHandler struct {
	responder
	service service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		responder: newResponder(logger),
		service:   svc,
	}
}

// CreateAccountRequest represents the request body for opening an account.
// OwnerID defaults to the caller, Currency to THB.
type CreateAccountRequest struct {
	OwnerID        int64           `json:"owner_id" validate:"omitempty,gt=0"`
	Currency       string          `json:"currency" validate:"omitempty,len=3,alpha"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// CreateAccount handles the open account request.
// POST /accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	ownerID := req.OwnerID
	if ownerID == 0 {
		callerID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			h.respondWithError(w, util.ErrUnauthorized)
			return
		}
		ownerID = callerID
	}

	account, err := h.service.CreateAccount(r.Context(), ownerID, req.Currency, req.InitialBalance)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, account)
}

// GetAccount handles the account detail request.
// GET /accounts/{accountID}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, account)
}

// ListAccounts handles the account listing request.
// GET /accounts?owner_id=&limit=&offset=
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryID(r, "owner_id")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	limit, offset := pagination(r)

	accounts, totalCount, err := h.service.ListAccounts(r.Context(), repository.AccountFilter{OwnerID: ownerID, Limit: limit, Offset: offset})
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.Account]{
		Data:       accounts,
		Limit:      limit,
		Offset:     offset,
		TotalCount: totalCount,
	})
}

// DeleteAccount handles the account removal request.
// DELETE /accounts/{accountID}
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), accountID); err != nil {
		h.respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
