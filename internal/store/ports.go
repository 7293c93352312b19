package store

import (
	"context"
	"errors"

	"budgetd/internal/core"
)

// ErrNotFound is returned when a referenced category or row does not exist.
var ErrNotFound = errors.New("not found")

// MaxPageSize caps a single transaction page; the budget screen asks for one
// page of this size to get "all" transactions of a month.
const MaxPageSize = 1000

// Ports for outbound adapters.
type (
	CategoryReader interface {
		// ListCategories returns the user's parents, each with its children embedded.
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	}

	CategoryWriter interface {
		// AddDefaultCategories seeds the default tree. Calling it again is a no-op.
		AddDefaultCategories(ctx context.Context, userID string) error
		AddCategory(ctx context.Context, c core.Category) (core.Category, error)
	}

	BudgetReader interface {
		ListBudgetRows(ctx context.Context, userID string, month core.Month) ([]core.BudgetRow, error)
	}

	BudgetWriter interface {
		// SaveBudgetRows upserts rows keyed by (user, category, month) in one write.
		SaveBudgetRows(ctx context.Context, rows []core.BudgetRow) error
	}

	TransactionLister interface {
		ListTransactions(ctx context.Context, userID string, month core.Month, page, pageSize int) (core.TransactionPage, error)
	}

	TransactionWriter interface {
		AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	// SummaryReader provides income and expense totals for a month.
	SummaryReader interface {
		ReadSummary(ctx context.Context, userID string, month core.Month) (core.Summary, error)
	}

	// Backend bundles every port a budget backend has to serve.
	Backend interface {
		CategoryReader
		CategoryWriter
		BudgetReader
		BudgetWriter
		TransactionLister
		TransactionWriter
		SummaryReader
	}
)

// NormalizePage clamps paging arguments to sane values.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
