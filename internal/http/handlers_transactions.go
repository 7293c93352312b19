package http

import (
	"net/http"

	"budgetd/internal/core"
	applog "budgetd/internal/log"
	"budgetd/internal/store"
)

const defaultPageSize = 50

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user, month, ok := request(w, r)
	if !ok {
		return
	}
	page, err := intParam(r, "page", 1)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pageSize, err := intParam(r, "page_size", defaultPageSize)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, pageSize = store.NormalizePage(page, pageSize)

	result, err := s.backend.ListTransactions(r.Context(), user, month, page, pageSize)
	if err != nil {
		writeDomainError(w, r, "list_transactions", err)
		return
	}
	out := transactionPageDTO{
		Transactions: make([]transactionDTO, 0, len(result.Transactions)),
		Page:         result.Page,
		PageSize:     result.PageSize,
		Total:        result.Total,
	}
	for _, t := range result.Transactions {
		out.Transactions = append(out.Transactions, newTransactionDTO(t))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleAddTransaction records activity and reloads the user's open budget
// sessions so activity and ready-to-assign follow.
func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req addTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeDomainError(w, r, "add_transaction", err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
		return
	}
	t := core.Transaction{
		UserID:      user,
		CategoryID:  req.CategoryID,
		Amount:      amount,
		Date:        date,
		Description: sanitizeInput(req.Description),
	}
	if err := t.Validate(); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.backend.AddTransaction(r.Context(), t)
	if err != nil {
		writeDomainError(w, r, "add_transaction", err)
		return
	}
	s.budgets.ReloadUser(r.Context(), user)

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction added",
		applog.FieldUserID, user, applog.FieldCategoryID, created.CategoryID, applog.FieldAmountCents, created.Amount.Cents)
	writeJSON(w, r, http.StatusCreated, newTransactionDTO(created))
}
