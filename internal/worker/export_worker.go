// Package worker mirrors persisted budget rows into the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetd/internal/amqp"
	"budgetd/internal/core"
	"budgetd/internal/sheets"
	"budgetd/internal/storage"
	"budgetd/internal/store"
)

// ExportStore is the part of the SQLite backend the worker needs.
type ExportStore interface {
	UnexportedRows(ctx context.Context, limit int) ([]storage.ExportRow, error)
	CategoryPath(ctx context.Context, userID string, categoryID int64) (group, category string, err error)
	MarkExported(ctx context.Context, row core.BudgetRow) (bool, error)
}

var _ ExportStore = (*storage.SQLiteRepository)(nil)

// ExportWorker writes budget rows into month tabs and records what it wrote.
type ExportWorker struct {
	store     ExportStore
	sheet     sheets.CellWriter
	batchSize int
}

func NewExportWorker(st ExportStore, sheet sheets.CellWriter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ExportWorker{store: st, sheet: sheet, batchSize: batchSize}
}

// HandleBudgetAssigned exports the row carried by one event. Malformed events
// and rows of deleted categories are dropped; anything else is retried.
func (w *ExportWorker) HandleBudgetAssigned(ctx context.Context, msg *amqp.BudgetAssignedMessage) error {
	row, err := msg.Row()
	if err != nil {
		slog.WarnContext(ctx, "Dropping invalid budget event", "component", "worker", "error", err,
			"user_id", msg.UserID, "category_id", msg.CategoryID, "month", msg.Month)
		return nil
	}

	group, category, err := w.store.CategoryPath(ctx, row.UserID, row.CategoryID)
	if errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping budget event for unknown category", "component", "worker",
			"user_id", row.UserID, "category_id", row.CategoryID)
		return nil
	}
	if err != nil {
		return err
	}
	return w.export(ctx, storage.ExportRow{BudgetRow: row, Group: group, Category: category})
}

// ProcessPending exports up to limit rows the events never covered, e.g.
// because the broker was down when they were saved. It returns how many rows
// were exported.
func (w *ExportWorker) ProcessPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = w.batchSize
	}
	pending, err := w.store.UnexportedRows(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get unexported rows: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	exported, failed := 0, 0
	for _, row := range pending {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		if err := w.export(ctx, row); err != nil {
			slog.ErrorContext(ctx, "Failed to export budget row", "component", "worker",
				"user_id", row.UserID, "category_id", row.CategoryID, "month", string(row.Month), "error", err)
			failed++
			continue
		}
		exported++
	}
	slog.InfoContext(ctx, "Pending budget rows processed", "component", "worker",
		"total", len(pending), "exported", exported, "errors", failed)
	return exported, nil
}

// StartupCheck catches up on a larger batch once, before consuming events.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	_, err := w.ProcessPending(ctx, w.batchSize*5)
	return err
}

func (w *ExportWorker) export(ctx context.Context, row storage.ExportRow) error {
	ref, err := w.sheet.UpsertBudgetCell(ctx, sheets.BudgetCell{
		Month:      row.Month,
		CategoryID: row.CategoryID,
		Group:      row.Group,
		Category:   row.Category,
		Assigned:   row.Assigned,
		Actual:     row.Actual,
	})
	if err != nil {
		return fmt.Errorf("write budget cell: %w", err)
	}

	if _, err := w.store.MarkExported(ctx, row.BudgetRow); err != nil {
		// The sheet is already right; the sweep will rewrite the same values.
		slog.ErrorContext(ctx, "Failed to mark row exported", "component", "worker", "error", err)
	}
	slog.InfoContext(ctx, "Exported budget row", "component", "worker",
		"user_id", row.UserID, "category_id", row.CategoryID, "month", string(row.Month), "sheets_ref", ref)
	return nil
}
