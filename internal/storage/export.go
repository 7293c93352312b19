package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"budgetd/internal/core"
	"budgetd/internal/store"
)

// ExportRow is a persisted budget row together with the names the sheet shows.
type ExportRow struct {
	core.BudgetRow
	Group    string
	Category string
}

// UnexportedRows returns up to limit rows not yet mirrored to the sheet,
// oldest change first.
func (r *SQLiteRepository) UnexportedRows(ctx context.Context, limit int) ([]ExportRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.category_id, b.month, b.assigned_cents, b.actual_cents,
		       COALESCE(p.name, ''), c.name
		FROM budgets b
		JOIN categories c ON c.id = b.category_id
		LEFT JOIN categories p ON p.id = c.parent_id
		WHERE b.exported = 0
		ORDER BY b.updated_at, b.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unexported rows: %w", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var e ExportRow
		var month string
		if err := rows.Scan(&e.ID, &e.UserID, &e.CategoryID, &month, &e.Assigned.Cents, &e.Actual.Cents, &e.Group, &e.Category); err != nil {
			return nil, fmt.Errorf("scan unexported row: %w", err)
		}
		e.Month = core.Month(month)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unexported rows: %w", err)
	}
	return out, nil
}

// CategoryPath returns the group and category names of a user's category.
func (r *SQLiteRepository) CategoryPath(ctx context.Context, userID string, categoryID int64) (group, category string, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(p.name, ''), c.name
		FROM categories c
		LEFT JOIN categories p ON p.id = c.parent_id
		WHERE c.id = ? AND c.user_id = ?`, categoryID, userID).Scan(&group, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("category %d: %w", categoryID, store.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("get category path: %w", err)
	}
	return group, category, nil
}

// MarkExported flags the cell as mirrored, but only while it still holds the
// exported amount; a newer edit keeps the row pending.
func (r *SQLiteRepository) MarkExported(ctx context.Context, row core.BudgetRow) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET exported = 1
		WHERE user_id = ? AND category_id = ? AND month = ? AND assigned_cents = ?`,
		row.UserID, row.CategoryID, string(row.Month), row.Assigned.Cents)
	if err != nil {
		return false, fmt.Errorf("mark budget row exported: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		slog.WarnContext(ctx, "Budget row changed before export was recorded", "component", "storage",
			"user_id", row.UserID, "category_id", row.CategoryID, "month", string(row.Month))
	}
	return n > 0, nil
}
