package http

import (
	"net/http"

	"budgetd/internal/core"
	applog "budgetd/internal/log"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.backend.AddDefaultCategories(r.Context(), user); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to add default categories",
			applog.FieldUserID, user, applog.FieldError, err)
	}
	cats, err := s.backend.ListCategories(r.Context(), user)
	if err != nil {
		writeDomainError(w, r, "list_categories", err)
		return
	}
	out := make([]categoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, newCategoryDTO(c))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleAddCategory adds a parent, or a child under parent_id. Open budget
// sessions of the user are reloaded so the new line shows up.
func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req addCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	c := core.Category{
		UserID:   user,
		Name:     sanitizeInput(req.Name),
		Type:     core.CategoryType(sanitizeInput(req.Type)),
		ParentID: req.ParentID,
	}
	if c.Name == "" {
		writeDomainError(w, r, "add_category", core.ErrEmptyName)
		return
	}
	if len(c.Name) > 100 {
		writeError(w, r, http.StatusUnprocessableEntity, "category name too long (max 100 characters)")
		return
	}

	created, err := s.backend.AddCategory(r.Context(), c)
	if err != nil {
		writeDomainError(w, r, "add_category", err)
		return
	}
	s.budgets.ReloadUser(r.Context(), user)

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Category added",
		applog.FieldUserID, user, applog.FieldCategoryID, created.ID)
	writeJSON(w, r, http.StatusCreated, newCategoryDTO(created))
}
