package http

import (
	"time"

	"budgetd/internal/budget"
	"budgetd/internal/core"
)

// Amounts cross the wire as fixed two-decimal strings, never floats.

const dateLayout = "2006-01-02"

type lineDTO struct {
	ID        int64  `json:"id"`
	ParentID  int64  `json:"parent_id"`
	Name      string `json:"name"`
	Budget    string `json:"budget"`
	Activity  string `json:"activity"`
	Remaining string `json:"remaining"`
}

type groupDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Budget    string    `json:"budget"`
	Activity  string    `json:"activity"`
	Remaining string    `json:"remaining"`
	Children  []lineDTO `json:"children"`
}

type summaryDTO struct {
	Month         string `json:"month"`
	Income        string `json:"income"`
	Expenses      string `json:"expenses"`
	ReadyToAssign string `json:"ready_to_assign"`
}

type budgetDTO struct {
	Month         string     `json:"month"`
	Version       uint64     `json:"version"`
	PendingWrites int        `json:"pending_writes"`
	Groups        []groupDTO `json:"groups"`
	Summary       summaryDTO `json:"summary"`
	DuplicateRows []int64    `json:"duplicate_rows,omitempty"`
}

type editBudgetRequest struct {
	Assigned string `json:"assigned"`
}

type categoryDTO struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	ParentID *int64        `json:"parent_id,omitempty"`
	Children []categoryDTO `json:"children,omitempty"`
}

type addCategoryRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID *int64 `json:"parent_id"`
}

type transactionDTO struct {
	ID          int64  `json:"id"`
	CategoryID  int64  `json:"category_id"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

type addTransactionRequest struct {
	CategoryID  int64  `json:"category_id"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

type transactionPageDTO struct {
	Transactions []transactionDTO `json:"transactions"`
	Page         int              `json:"page"`
	PageSize     int              `json:"page_size"`
	Total        int              `json:"total"`
}

func newSummaryDTO(month core.Month, s core.Summary) summaryDTO {
	return summaryDTO{
		Month:         string(month),
		Income:        s.Income.String(),
		Expenses:      s.Expenses.String(),
		ReadyToAssign: s.ReadyToAssign().String(),
	}
}

func newBudgetDTO(month core.Month, v budget.View, pending int) budgetDTO {
	out := budgetDTO{
		Month:         string(month),
		Version:       v.Version,
		PendingWrites: pending,
		Groups:        make([]groupDTO, 0, len(v.Tree.Groups)),
		Summary:       newSummaryDTO(month, v.Summary),
		DuplicateRows: v.Tree.DuplicateRows,
	}
	for _, g := range v.Tree.Groups {
		gd := groupDTO{
			ID:        g.ID,
			Name:      g.Name,
			Type:      string(g.Type),
			Budget:    g.Budget.String(),
			Activity:  g.Activity.String(),
			Remaining: g.Remaining.String(),
			Children:  make([]lineDTO, 0, len(g.Children)),
		}
		for _, l := range g.Children {
			gd.Children = append(gd.Children, lineDTO{
				ID:        l.ID,
				ParentID:  l.ParentID,
				Name:      l.Name,
				Budget:    l.Budget.String(),
				Activity:  l.Activity.String(),
				Remaining: l.Remaining.String(),
			})
		}
		out.Groups = append(out.Groups, gd)
	}
	return out
}

func newCategoryDTO(c core.Category) categoryDTO {
	out := categoryDTO{ID: c.ID, Name: c.Name, Type: string(c.Type), ParentID: c.ParentID}
	for _, child := range c.Children {
		out.Children = append(out.Children, newCategoryDTO(child))
	}
	return out
}

func newTransactionDTO(t core.Transaction) transactionDTO {
	return transactionDTO{
		ID:          t.ID,
		CategoryID:  t.CategoryID,
		Amount:      t.Amount.String(),
		Date:        t.Date.Format(dateLayout),
		Description: t.Description,
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
