package http

import (
	"errors"
	"net/http"

	"budgetd/internal/budget"
	"budgetd/internal/core"
	applog "budgetd/internal/log"
)

// handleGetBudget returns the month's tree. A session whose first load
// failed has nothing to show, so it answers 503 rather than an empty tree.
func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	user, month, ok := request(w, r)
	if !ok {
		return
	}
	sess, view := s.budgets.Open(r.Context(), user, month)
	if !view.Loaded {
		writeError(w, r, http.StatusServiceUnavailable, "budget is not available yet, try again shortly")
		return
	}
	writeJSON(w, r, http.StatusOK, newBudgetDTO(month, view, sess.PendingWrites()))
}

// handleEditBudget applies an edit optimistically and answers 202: the
// write is queued and lands once edits go quiet.
func (s *Server) handleEditBudget(w http.ResponseWriter, r *http.Request) {
	user, month, ok := request(w, r)
	if !ok {
		return
	}
	parentID, err := idVar(r, "parentID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	childID, err := idVar(r, "childID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req editBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	value, err := core.ParseMoney(req.Assigned)
	if err != nil {
		writeDomainError(w, r, "edit_budget", err)
		return
	}

	sess, _ := s.budgets.Open(r.Context(), user, month)
	view, err := sess.Edit(parentID, childID, value)
	if errors.Is(err, budget.ErrSessionClosed) {
		// Evicted between Open and Edit; a fresh session takes the edit.
		sess, _ = s.budgets.Open(r.Context(), user, month)
		view, err = sess.Edit(parentID, childID, value)
	}
	if err != nil {
		writeDomainError(w, r, "edit_budget", err)
		return
	}

	applog.FromContext(r.Context()).DebugContext(r.Context(), "Budget edit queued",
		applog.NewFields().WithBudgetCell(user, string(month), childID, value.Cents).ToSlice()...)
	writeJSON(w, r, http.StatusAccepted, newBudgetDTO(month, view, sess.PendingWrites()))
}

// handleFlushBudget writes queued edits now. With no open session there is
// nothing to write.
func (s *Server) handleFlushBudget(w http.ResponseWriter, r *http.Request) {
	user, month, ok := request(w, r)
	if !ok {
		return
	}
	sess, found := s.budgets.Lookup(user, month)
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := sess.Flush(r.Context()); err != nil {
		writeDomainError(w, r, "flush_budget", err)
		return
	}
	writeJSON(w, r, http.StatusOK, newBudgetDTO(month, sess.View(), sess.PendingWrites()))
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	user, month, ok := request(w, r)
	if !ok {
		return
	}
	_, view := s.budgets.Open(r.Context(), user, month)
	if !view.Loaded {
		writeError(w, r, http.StatusServiceUnavailable, "budget is not available yet, try again shortly")
		return
	}
	writeJSON(w, r, http.StatusOK, newSummaryDTO(month, view.Summary))
}
