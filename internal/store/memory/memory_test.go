package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetd/internal/core"
	"budgetd/internal/store"
)

func TestStore_AddDefaultCategoriesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.AddDefaultCategories(ctx, "u1"); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	first, _ := s.ListCategories(ctx, "u1")
	if len(first) == 0 {
		t.Fatal("expected default categories")
	}
	if err := s.AddDefaultCategories(ctx, "u1"); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	second, _ := s.ListCategories(ctx, "u1")
	if len(second) != len(first) {
		t.Fatalf("seeding twice changed parents: %d -> %d", len(first), len(second))
	}

	other, _ := s.ListCategories(ctx, "u2")
	if len(other) != 0 {
		t.Fatalf("other user sees %d categories", len(other))
	}
}

func TestStore_AddCategory(t *testing.T) {
	ctx := context.Background()
	s := New()
	parent, err := s.AddCategory(ctx, core.Category{UserID: "u", Name: "Fun", Type: core.Expense})
	if err != nil {
		t.Fatalf("add parent: %v", err)
	}
	child, err := s.AddCategory(ctx, core.Category{UserID: "u", Name: "Games", Type: core.Income, ParentID: &parent.ID})
	if err != nil {
		t.Fatalf("add child: %v", err)
	}
	if child.Type != core.Expense {
		t.Errorf("child type = %q, want parent's type", child.Type)
	}

	if _, err := s.AddCategory(ctx, core.Category{UserID: "u", Name: "Deep", ParentID: &child.ID}); !errors.Is(err, core.ErrNestedCategory) {
		t.Errorf("nested child: got %v", err)
	}
	missing := int64(999)
	if _, err := s.AddCategory(ctx, core.Category{UserID: "u", Name: "Orphan", ParentID: &missing}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing parent: got %v", err)
	}
	if _, err := s.AddCategory(ctx, core.Category{UserID: "u", Name: "  ", Type: core.Expense}); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("empty name: got %v", err)
	}

	cats, _ := s.ListCategories(ctx, "u")
	if len(cats) != 1 || len(cats[0].Children) != 1 || cats[0].Children[0].Name != "Games" {
		t.Fatalf("unexpected tree: %+v", cats)
	}
}

func TestStore_SaveBudgetRowsUpserts(t *testing.T) {
	ctx := context.Background()
	s := NewWithSampleData("u", "2024-03")

	rows, _ := s.ListBudgetRows(ctx, "u", "2024-03")
	if len(rows) != 2 {
		t.Fatalf("expected 2 sample rows, got %d", len(rows))
	}
	id := rows[0].ID

	err := s.SaveBudgetRows(ctx, []core.BudgetRow{
		{UserID: "u", CategoryID: rows[0].CategoryID, Month: "2024-03", Assigned: core.Cents(1)},
		{UserID: "u", CategoryID: rows[0].CategoryID, Month: "2024-04", Assigned: core.Cents(2)},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	rows, _ = s.ListBudgetRows(ctx, "u", "2024-03")
	if len(rows) != 2 || rows[0].ID != id || rows[0].Assigned.Cents != 1 {
		t.Fatalf("upsert did not keep row identity: %+v", rows)
	}
	april, _ := s.ListBudgetRows(ctx, "u", "2024-04")
	if len(april) != 1 {
		t.Fatalf("april rows = %d", len(april))
	}

	if err := s.SaveBudgetRows(ctx, []core.BudgetRow{{UserID: "u", CategoryID: 1, Month: "2024-03", Assigned: core.Cents(-5)}}); !errors.Is(err, core.ErrNegativeBudget) {
		t.Errorf("negative row: got %v", err)
	}
}

func TestStore_ListTransactionsPaging(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, _ := s.AddCategory(ctx, core.Category{UserID: "u", Name: "Food", Type: core.Expense})
	c, _ := s.AddCategory(ctx, core.Category{UserID: "u", Name: "Snacks", ParentID: &p.ID})

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := s.AddTransaction(ctx, core.Transaction{UserID: "u", CategoryID: c.ID, Amount: core.Cents(int64(100 * (i + 1))), Date: base.AddDate(0, 0, i)}); err != nil {
			t.Fatalf("add txn: %v", err)
		}
	}
	if _, err := s.AddTransaction(ctx, core.Transaction{UserID: "u", CategoryID: c.ID, Amount: core.Cents(1), Date: base.AddDate(0, 1, 0)}); err != nil {
		t.Fatalf("add april txn: %v", err)
	}

	page, err := s.ListTransactions(ctx, "u", "2024-03", 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || len(page.Transactions) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Transactions[0].Amount.Cents != 500 {
		t.Errorf("expected newest first, got %d", page.Transactions[0].Amount.Cents)
	}

	last, _ := s.ListTransactions(ctx, "u", "2024-03", 3, 2)
	if len(last.Transactions) != 1 {
		t.Errorf("last page has %d", len(last.Transactions))
	}
	beyond, _ := s.ListTransactions(ctx, "u", "2024-03", 9, 2)
	if len(beyond.Transactions) != 0 {
		t.Errorf("page past the end has %d", len(beyond.Transactions))
	}
}

func TestStore_AddTransactionUnknownCategory(t *testing.T) {
	s := New()
	_, err := s.AddTransaction(context.Background(), core.Transaction{UserID: "u", CategoryID: 7, Amount: core.Cents(1), Date: time.Now()})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestStore_ReadSummary(t *testing.T) {
	s := NewWithSampleData("u", "2024-03")
	sum, err := s.ReadSummary(context.Background(), "u", "2024-03")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Income.Cents != 350000 || sum.Expenses.Cents != 70800 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := sum.ReadyToAssign().Cents; got != 279200 {
		t.Errorf("ready to assign = %d", got)
	}
}
