package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgetd/internal/core"
	"budgetd/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedFood(t *testing.T, repo *SQLiteRepository, user string) (food, groceries, restaurants core.Category) {
	t.Helper()
	ctx := context.Background()
	var err error
	if food, err = repo.AddCategory(ctx, core.Category{UserID: user, Name: "Food", Type: core.Expense}); err != nil {
		t.Fatalf("add food: %v", err)
	}
	if groceries, err = repo.AddCategory(ctx, core.Category{UserID: user, Name: "Groceries", ParentID: &food.ID}); err != nil {
		t.Fatalf("add groceries: %v", err)
	}
	if restaurants, err = repo.AddCategory(ctx, core.Category{UserID: user, Name: "Restaurants", ParentID: &food.ID}); err != nil {
		t.Fatalf("add restaurants: %v", err)
	}
	return food, groceries, restaurants
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	v2, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v1 != 1 || v2 != 1 {
		t.Fatalf("versions = %d, %d", v1, v2)
	}
}

func TestAddDefaultCategoriesOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.AddDefaultCategories(ctx, "u"); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	cats, err := repo.ListCategories(ctx, "u")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	groups, _ := core.DefaultCategories()
	if len(cats) != len(groups) {
		t.Fatalf("got %d parents, want %d", len(cats), len(groups))
	}
	for i, g := range groups {
		if cats[i].Name != g.Name || len(cats[i].Children) != len(g.Children) {
			t.Errorf("parent %d = %s with %d children, want %s with %d", i, cats[i].Name, len(cats[i].Children), g.Name, len(g.Children))
		}
		for _, c := range cats[i].Children {
			if c.Type != g.Type {
				t.Errorf("%s/%s type = %s", g.Name, c.Name, c.Type)
			}
		}
	}
}

func TestAddCategoryRules(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, groceries, _ := seedFood(t, repo, "u")

	if _, err := repo.AddCategory(ctx, core.Category{UserID: "u", Name: "Deep", ParentID: &groceries.ID}); !errors.Is(err, core.ErrNestedCategory) {
		t.Errorf("nested: got %v", err)
	}
	if _, err := repo.AddCategory(ctx, core.Category{UserID: "other", Name: "Steal", ParentID: &groceries.ID}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign parent: got %v", err)
	}
	if _, err := repo.AddCategory(ctx, core.Category{UserID: "u", Name: "X", Type: "savings"}); !errors.Is(err, core.ErrInvalidCategoryType) {
		t.Errorf("bad type: got %v", err)
	}
	if groceries.Type != core.Expense {
		t.Errorf("child type = %s", groceries.Type)
	}
}

func TestSaveBudgetRowsUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, groceries, restaurants := seedFood(t, repo, "u")

	save := func(rows ...core.BudgetRow) {
		t.Helper()
		if err := repo.SaveBudgetRows(ctx, rows); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	save(
		core.BudgetRow{UserID: "u", CategoryID: groceries.ID, Month: "2024-03", Assigned: core.Cents(50000)},
		core.BudgetRow{UserID: "u", CategoryID: restaurants.ID, Month: "2024-03", Assigned: core.Cents(30000)},
	)
	before, _ := repo.ListBudgetRows(ctx, "u", "2024-03")
	save(core.BudgetRow{UserID: "u", CategoryID: groceries.ID, Month: "2024-03", Assigned: core.Cents(60000), Actual: core.Cents(47100)})
	after, err := repo.ListBudgetRows(ctx, "u", "2024-03")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("rows = %d, want 2", len(after))
	}
	if after[0].ID != before[0].ID || after[0].Assigned.Cents != 60000 || after[0].Actual.Cents != 47100 {
		t.Errorf("upserted row = %+v", after[0])
	}

	err = repo.SaveBudgetRows(ctx, []core.BudgetRow{{UserID: "u", CategoryID: groceries.ID, Month: "2024-03", Assigned: core.Cents(-1)}})
	if !errors.Is(err, core.ErrNegativeBudget) {
		t.Errorf("negative: got %v", err)
	}
}

func TestTransactionsAndSummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, groceries, _ := seedFood(t, repo, "u")
	income, _ := repo.AddCategory(ctx, core.Category{UserID: "u", Name: "Income", Type: core.Income})
	salary, _ := repo.AddCategory(ctx, core.Category{UserID: "u", Name: "Salary", ParentID: &income.ID})

	add := func(cat int64, cents int64, date time.Time) {
		t.Helper()
		if _, err := repo.AddTransaction(ctx, core.Transaction{UserID: "u", CategoryID: cat, Amount: core.Cents(cents), Date: date}); err != nil {
			t.Fatalf("add transaction: %v", err)
		}
	}
	d := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	add(groceries.ID, 47100, d)
	add(groceries.ID, 100, d.AddDate(0, 0, 1))
	add(salary.ID, 350000, d)
	add(groceries.ID, 999, d.AddDate(0, 1, 0))

	page, err := repo.ListTransactions(ctx, "u", "2024-03", 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Transactions) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if !page.Transactions[0].Date.Equal(d.AddDate(0, 0, 1)) {
		t.Errorf("first = %v, want newest", page.Transactions[0].Date)
	}

	sum, err := repo.ReadSummary(ctx, "u", "2024-03")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Income.Cents != 350000 || sum.Expenses.Cents != 47200 {
		t.Errorf("summary = %+v", sum)
	}

	if _, err := repo.AddTransaction(ctx, core.Transaction{UserID: "other", CategoryID: groceries.ID, Amount: core.Cents(1), Date: d}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign category: got %v", err)
	}
}

func TestExportTracking(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, groceries, _ := seedFood(t, repo, "u")

	row := core.BudgetRow{UserID: "u", CategoryID: groceries.ID, Month: "2024-03", Assigned: core.Cents(50000)}
	if err := repo.SaveBudgetRows(ctx, []core.BudgetRow{row}); err != nil {
		t.Fatalf("save: %v", err)
	}

	pending, err := repo.UnexportedRows(ctx, 10)
	if err != nil {
		t.Fatalf("unexported: %v", err)
	}
	if len(pending) != 1 || pending[0].Group != "Food" || pending[0].Category != "Groceries" {
		t.Fatalf("pending = %+v", pending)
	}

	stale := row
	stale.Assigned = core.Cents(1)
	if ok, err := repo.MarkExported(ctx, stale); err != nil || ok {
		t.Fatalf("stale mark = %v, %v", ok, err)
	}
	if ok, err := repo.MarkExported(ctx, row); err != nil || !ok {
		t.Fatalf("mark = %v, %v", ok, err)
	}
	if pending, _ = repo.UnexportedRows(ctx, 10); len(pending) != 0 {
		t.Fatalf("still pending: %+v", pending)
	}

	// Editing the row queues it again.
	row.Assigned = core.Cents(60000)
	if err := repo.SaveBudgetRows(ctx, []core.BudgetRow{row}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if pending, _ = repo.UnexportedRows(ctx, 10); len(pending) != 1 {
		t.Fatalf("edited row not pending")
	}

	group, name, err := repo.CategoryPath(ctx, "u", groceries.ID)
	if err != nil || group != "Food" || name != "Groceries" {
		t.Errorf("path = %q %q %v", group, name, err)
	}
}
