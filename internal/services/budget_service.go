// Package services orchestrates writes across the backend and the event bus.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"budgetd/internal/core"
	"budgetd/internal/store"
)

// Publisher announces persisted budget rows.
type Publisher interface {
	PublishBudgetAssigned(ctx context.Context, row core.BudgetRow) error
}

var _ store.BudgetWriter = (*BudgetService)(nil)

// BudgetService saves budget rows to the backend, then publishes one event per
// row. The backend write is the source of truth: a failed publish is logged
// and the export sweep picks the row up later.
type BudgetService struct {
	writer    store.BudgetWriter
	publisher Publisher
	closers   []io.Closer
}

// NewBudgetService wires the writer and an optional publisher. closers are
// closed, in order, by Close.
func NewBudgetService(writer store.BudgetWriter, publisher Publisher, closers ...io.Closer) *BudgetService {
	return &BudgetService{writer: writer, publisher: publisher, closers: closers}
}

func (s *BudgetService) SaveBudgetRows(ctx context.Context, rows []core.BudgetRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.writer.SaveBudgetRows(ctx, rows); err != nil {
		return fmt.Errorf("save budget rows: %w", err)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping budget events", "component", "budget", "rows", len(rows))
		return nil
	}
	for _, row := range rows {
		if err := s.publisher.PublishBudgetAssigned(ctx, row); err != nil {
			slog.ErrorContext(ctx, "Failed to publish budget assigned event", "component", "budget",
				"user_id", row.UserID, "category_id", row.CategoryID, "month", string(row.Month), "error", err)
		}
	}
	return nil
}

// Close releases the wired resources.
func (s *BudgetService) Close() error {
	var errs []error
	for _, c := range s.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close budget service: %w", err)
	}
	return nil
}
