// Package storage is the SQLite budget backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budgetd/internal/core"
	"budgetd/internal/store"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

var _ store.Backend = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates it.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if _, err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps pragmas in effect and serialises writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %q: %w", pragma, err)
		}
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListCategories returns the user's parents in creation order, each with its
// children in creation order.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, parent_id
		FROM categories
		WHERE user_id = ?
		ORDER BY parent_id IS NOT NULL, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var parents []core.Category
	index := map[int64]int{}
	for rows.Next() {
		c := core.Category{UserID: userID}
		var parent sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &parent); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if !parent.Valid {
			index[c.ID] = len(parents)
			parents = append(parents, c)
			continue
		}
		pid := parent.Int64
		c.ParentID = &pid
		if i, ok := index[pid]; ok {
			parents[i].Children = append(parents[i].Children, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return parents, nil
}

// AddDefaultCategories creates the default tree once per user.
func (r *SQLiteRepository) AddDefaultCategories(ctx context.Context, userID string) error {
	groups, err := core.DefaultCategories()
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO category_seeds (user_id) VALUES (?)`, userID)
	if err != nil {
		return fmt.Errorf("mark seeded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, g := range groups {
		parentID, err := insertCategory(ctx, tx, userID, g.Name, g.Type, nil)
		if err != nil {
			return fmt.Errorf("add default group %q: %w", g.Name, err)
		}
		for _, name := range g.Children {
			if _, err := insertCategory(ctx, tx, userID, name, g.Type, &parentID); err != nil {
				return fmt.Errorf("add default category %q: %w", name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	slog.InfoContext(ctx, "Default categories created", "component", "storage", "user_id", userID, "groups", len(groups))
	return nil
}

// AddCategory inserts c. A child takes its parent's type and cannot itself
// have children.
func (r *SQLiteRepository) AddCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ParentID != nil {
		var (
			typ         core.CategoryType
			grandparent sql.NullInt64
		)
		err := r.db.QueryRowContext(ctx,
			`SELECT type, parent_id FROM categories WHERE id = ? AND user_id = ?`,
			*c.ParentID, c.UserID).Scan(&typ, &grandparent)
		if errors.Is(err, sql.ErrNoRows) {
			return core.Category{}, fmt.Errorf("parent %d: %w", *c.ParentID, store.ErrNotFound)
		}
		if err != nil {
			return core.Category{}, fmt.Errorf("get parent category: %w", err)
		}
		if grandparent.Valid {
			return core.Category{}, core.ErrNestedCategory
		}
		c.Type = typ
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	id, err := insertCategory(ctx, r.db, c.UserID, c.Name, c.Type, c.ParentID)
	if err != nil {
		return core.Category{}, err
	}
	c.ID = id
	c.Children = nil
	return c, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCategory(ctx context.Context, db execer, userID, name string, typ core.CategoryType, parentID *int64) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, parent_id) VALUES (?, ?, ?, ?)`,
		userID, name, string(typ), parentID)
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ListBudgetRows(ctx context.Context, userID string, month core.Month) ([]core.BudgetRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category_id, assigned_cents, actual_cents
		FROM budgets
		WHERE user_id = ? AND month = ?
		ORDER BY id`, userID, string(month))
	if err != nil {
		return nil, fmt.Errorf("list budget rows: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetRow
	for rows.Next() {
		b := core.BudgetRow{UserID: userID, Month: month}
		if err := rows.Scan(&b.ID, &b.CategoryID, &b.Assigned.Cents, &b.Actual.Cents); err != nil {
			return nil, fmt.Errorf("scan budget row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budget rows: %w", err)
	}
	return out, nil
}

// SaveBudgetRows upserts all rows in one transaction. A changed row is marked
// for export again.
func (r *SQLiteRepository) SaveBudgetRows(ctx context.Context, rows []core.BudgetRow) error {
	for _, b := range rows {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("budget row for category %d: %w", b.CategoryID, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save budget rows: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO budgets (user_id, category_id, month, assigned_cents, actual_cents)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, category_id, month) DO UPDATE SET
			assigned_cents = excluded.assigned_cents,
			actual_cents   = excluded.actual_cents,
			exported       = 0,
			updated_at     = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("prepare budget upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range rows {
		if _, err := stmt.ExecContext(ctx, b.UserID, b.CategoryID, string(b.Month), b.Assigned.Cents, b.Actual.Cents); err != nil {
			return fmt.Errorf("upsert budget row for category %d: %w", b.CategoryID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit budget rows: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM categories WHERE id = ? AND user_id = ?`, t.CategoryID, t.UserID).Scan(&exists)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("check category: %w", err)
	}
	if exists == 0 {
		return core.Transaction{}, fmt.Errorf("category %d: %w", t.CategoryID, store.ErrNotFound)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, category_id, amount_cents, date, month, description)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.UserID, t.CategoryID, t.Amount.Cents, t.Date.Format(dateLayout), string(core.MonthOf(t.Date)), t.Description)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	return t, nil
}

// ListTransactions returns one page of the month's transactions, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, month core.Month, page, pageSize int) (core.TransactionPage, error) {
	page, pageSize = store.NormalizePage(page, pageSize)
	result := core.TransactionPage{Page: page, PageSize: pageSize}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM transactions WHERE user_id = ? AND month = ?`,
		userID, string(month)).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count transactions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category_id, amount_cents, date, description
		FROM transactions
		WHERE user_id = ? AND month = ?
		ORDER BY date DESC, id DESC
		LIMIT ? OFFSET ?`, userID, string(month), pageSize, (page-1)*pageSize)
	if err != nil {
		return result, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := core.Transaction{UserID: userID}
		var date string
		if err := rows.Scan(&t.ID, &t.CategoryID, &t.Amount.Cents, &date, &t.Description); err != nil {
			return result, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = time.Parse(dateLayout, date); err != nil {
			return result, fmt.Errorf("parse transaction %d date: %w", t.ID, err)
		}
		result.Transactions = append(result.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}

// ReadSummary sums the month's transactions by category type.
func (r *SQLiteRepository) ReadSummary(ctx context.Context, userID string, month core.Month) (core.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.type, COALESCE(SUM(t.amount_cents), 0)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.month = ?
		GROUP BY c.type`, userID, string(month))
	if err != nil {
		return core.Summary{}, fmt.Errorf("read summary: %w", err)
	}
	defer rows.Close()

	sum := core.Summary{Month: month}
	for rows.Next() {
		var (
			typ   core.CategoryType
			cents int64
		)
		if err := rows.Scan(&typ, &cents); err != nil {
			return core.Summary{}, fmt.Errorf("scan summary: %w", err)
		}
		switch typ {
		case core.Income:
			sum.Income = core.Cents(cents)
		case core.Expense:
			sum.Expenses = core.Cents(cents)
		}
	}
	if err := rows.Err(); err != nil {
		return core.Summary{}, fmt.Errorf("iterate summary: %w", err)
	}
	return sum, nil
}
