// Package memory is an in-process sheet used when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetd/internal/core"
	"budgetd/internal/sheets"
)

var (
	_ sheets.CellWriter  = (*Sheet)(nil)
	_ sheets.MonthReader = (*Sheet)(nil)
)

// Sheet keeps one ordered tab per month.
type Sheet struct {
	mu   sync.Mutex
	tabs map[core.Month][]sheets.BudgetCell
}

func New() *Sheet {
	return &Sheet{tabs: make(map[core.Month][]sheets.BudgetCell)}
}

// UpsertBudgetCell replaces the category's line or appends it and returns a
// synthetic reference "mem:<month>!<row>" with a 1-based row.
func (s *Sheet) UpsertBudgetCell(_ context.Context, cell sheets.BudgetCell) (string, error) {
	if cell.CategoryID == 0 {
		return "", core.ErrMissingCategory
	}
	if _, _, err := cell.Month.Bounds(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tab := s.tabs[cell.Month]
	for i, existing := range tab {
		if existing.CategoryID == cell.CategoryID {
			tab[i] = cell
			return fmt.Sprintf("mem:%s!%d", cell.Month, i+1), nil
		}
	}
	s.tabs[cell.Month] = append(tab, cell)
	return fmt.Sprintf("mem:%s!%d", cell.Month, len(tab)+1), nil
}

func (s *Sheet) ReadMonth(_ context.Context, month core.Month) ([]sheets.BudgetCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.BudgetCell(nil), s.tabs[month]...), nil
}
