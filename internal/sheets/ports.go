// Package sheets defines the spreadsheet mirror the export worker writes to.
package sheets

import (
	"context"

	"budgetd/internal/core"
)

// BudgetCell is one category's line in a month tab.
type BudgetCell struct {
	Month      core.Month
	CategoryID int64
	Group      string
	Category   string
	Assigned   core.Money
	Actual     core.Money
}

// Remaining is assigned minus actual, as the sheet shows it.
func (c BudgetCell) Remaining() core.Money {
	return c.Assigned.Sub(c.Actual)
}

// Ports for outbound adapters.
type (
	// CellWriter writes a cell, replacing the category's existing line in the
	// month tab or appending a new one.
	CellWriter interface {
		UpsertBudgetCell(ctx context.Context, cell BudgetCell) (rowRef string, err error)
	}

	// MonthReader reads back the lines of a month tab.
	MonthReader interface {
		ReadMonth(ctx context.Context, month core.Month) ([]BudgetCell, error)
	}
)
