// internal/api/handler/ledger.go
package handler

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/shopspring/decimal"

	"finflow-ledger/internal/api/types"
	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/service"
)

// LedgerHandler handles HTTP requests that move money or read ledger state.
type LedgerHandler struct {
	responder
	service service.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc service.LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		responder: newResponder(logger),
		service:   svc,
	}
}

// AmountRequest represents the request body for deposit and withdraw.
// An omitted currency means the account's own currency.
type AmountRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"omitempty,len=3,alpha"`
}

// TransferRequest represents the request body for transfer.
type TransferRequest struct {
	ToAccountID int64           `json:"to_account_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"omitempty,len=3,alpha"`
}

// Deposit handles the deposit money request.
// POST /accounts/{accountID}/deposit
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req AmountRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	account, transaction, err := h.service.Deposit(r.Context(), accountID, req.Amount, req.Currency)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Deposit successful",
		"account_id":  account.ID,
		"new_balance": account.Balance,
		"currency":    account.Currency,
		"transaction": transaction,
	})
}

// Withdraw handles the withdraw money request.
// POST /accounts/{accountID}/withdraw
func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req AmountRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	account, transaction, err := h.service.Withdraw(r.Context(), accountID, req.Amount, req.Currency)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Withdrawal successful",
		"account_id":  account.ID,
		"new_balance": account.Balance,
		"currency":    account.Currency,
		"transaction": transaction,
	})
}

// Transfer handles the transfer money request.
// POST /accounts/{accountID}/transfer
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	fromAccountID, err := pathID(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req TransferRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	fromAccount, toAccount, transaction, err := h.service.Transfer(r.Context(), fromAccountID, req.ToAccountID, req.Amount, req.Currency)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":                  "Transfer successful",
		"transaction":              transaction,
		"from_account_new_balance": fromAccount.Balance,
		"to_account_new_balance":   toAccount.Balance,
	})
}

// GetBalance handles the get account balance request.
// GET /accounts/{accountID}/balance
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	account, err := h.service.GetBalance(r.Context(), accountID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": account.ID,
		"balance":    account.Balance,
		"currency":   account.Currency,
	})
}

// ListTransactions handles the transaction listing request.
// GET /transactions?account_id=&to_account_id=&transaction_type=&transaction_currency=&limit=&offset=
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := transactionFilter(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.listTransactions(w, r, filter)
}

// GetAccountTransactions lists transactions recorded against one account.
// GET /accounts/{accountID}/transactions
func (h *LedgerHandler) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	filter, err := transactionFilter(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	filter.AccountID = &accountID
	h.listTransactions(w, r, filter)
}

func (h *LedgerHandler) listTransactions(w http.ResponseWriter, r *http.Request, filter repository.TransactionFilter) {
	transactions, totalCount, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.Transaction]{
		Data:       transactions,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		TotalCount: totalCount,
	})
}

func transactionFilter(r *http.Request) (repository.TransactionFilter, error) {
	var filter repository.TransactionFilter
	var err error
	q := r.URL.Query()

	if filter.AccountID, err = queryID(r, "account_id"); err != nil {
		return filter, err
	}
	if filter.ToAccountID, err = queryID(r, "to_account_id"); err != nil {
		return filter, err
	}
	if raw := q.Get("transaction_type"); raw != "" {
		txType, err := domain.ParseTransactionType(raw)
		if err != nil {
			return filter, err
		}
		filter.Type = &txType
	}
	if raw := q.Get("transaction_currency"); raw != "" {
		cur, err := domain.ParseCurrency(raw)
		if err != nil {
			return filter, err
		}
		filter.RealCurrency = &cur
	}
	filter.Limit, filter.Offset = pagination(r)
	return filter, nil
}

// RateResponse is one entry of the conversion table.
type RateResponse struct {
	From domain.Currency `json:"from"`
	To   domain.Currency `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

// GetRates returns the active conversion table.
// GET /rates
func (h *LedgerHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	rates := h.service.Rates()
	out := make([]RateResponse, 0, len(rates))
	for pair, rate := range rates {
		out = append(out, RateResponse{From: pair.From, To: pair.To, Rate: rate})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"rates": out})
}
