package budget

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetd/internal/core"
)

const march = core.Month("2024-03")

func ptr(v int64) *int64 { return &v }

func foodFixture() ([]core.Category, []core.BudgetRow, []core.Transaction) {
	cats := []core.Category{
		{ID: 1, Name: "Food", Type: core.Expense, Children: []core.Category{
			{ID: 2, Name: "Groceries", Type: core.Expense, ParentID: ptr(1)},
			{ID: 3, Name: "Restaurants", Type: core.Expense, ParentID: ptr(1)},
		}},
		{ID: 4, Name: "Bills", Type: core.Expense, Children: []core.Category{
			{ID: 5, Name: "Rent", Type: core.Expense, ParentID: ptr(4)},
		}},
	}
	rows := []core.BudgetRow{
		{ID: 10, CategoryID: 2, Month: march, Assigned: core.Cents(50000)},
		{ID: 11, CategoryID: 3, Month: march, Assigned: core.Cents(30000)},
		{ID: 12, CategoryID: 5, Month: march, Assigned: core.Cents(120000)},
	}
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	txns := []core.Transaction{
		{ID: 20, CategoryID: 2, Amount: core.Cents(30000), Date: day},
		{ID: 21, CategoryID: 2, Amount: core.Cents(17100), Date: day},
		{ID: 22, CategoryID: 3, Amount: core.Cents(23700), Date: day},
	}
	return cats, rows, txns
}

func TestBuild_GroupTotals(t *testing.T) {
	cats, rows, txns := foodFixture()
	tree := Build(march, cats, rows, txns)

	require.Len(t, tree.Groups, 2)
	food := tree.Groups[0]
	assert.Equal(t, "Food", food.Name)
	assert.Equal(t, int64(80000), food.Budget.Cents)
	assert.Equal(t, int64(70800), food.Activity.Cents)
	assert.Equal(t, int64(9200), food.Remaining.Cents)

	groceries := food.Children[0]
	assert.Equal(t, int64(50000), groceries.Budget.Cents)
	assert.Equal(t, int64(47100), groceries.Activity.Cents)
	assert.Equal(t, int64(2900), groceries.Remaining.Cents)

	rent := tree.Groups[1].Children[0]
	assert.Equal(t, int64(120000), rent.Remaining.Cents)
	assert.True(t, rent.Activity.IsZero())
}

func TestBuild_MissingRowIsZero(t *testing.T) {
	cats, _, txns := foodFixture()
	tree := Build(march, cats, nil, txns)
	line, ok := tree.Find(3)
	require.True(t, ok)
	assert.True(t, line.Budget.IsZero())
	assert.Equal(t, int64(-23700), line.Remaining.Cents)
}

func TestBuild_OrderIndependent(t *testing.T) {
	cats, rows, txns := foodFixture()
	want := Build(march, cats, rows, txns)

	revRows := append([]core.BudgetRow(nil), rows...)
	revTxns := append([]core.Transaction(nil), txns...)
	for i, j := 0, len(revRows)-1; i < j; i, j = i+1, j-1 {
		revRows[i], revRows[j] = revRows[j], revRows[i]
	}
	for i, j := 0, len(revTxns)-1; i < j; i, j = i+1, j-1 {
		revTxns[i], revTxns[j] = revTxns[j], revTxns[i]
	}
	assert.Equal(t, want, Build(march, cats, revRows, revTxns))
}

func TestBuild_DuplicateRowsHighestIDWins(t *testing.T) {
	cats, rows, txns := foodFixture()
	rows = append(rows, core.BudgetRow{ID: 30, CategoryID: 2, Month: march, Assigned: core.Cents(65000)})
	rows = append([]core.BudgetRow{{ID: 5, CategoryID: 2, Month: march, Assigned: core.Cents(100)}}, rows...)

	tree := Build(march, cats, rows, txns)
	line, _ := tree.Find(2)
	assert.Equal(t, int64(65000), line.Budget.Cents)
	assert.Equal(t, []int64{2}, tree.DuplicateRows)
}

func TestBuild_ActivityOfUnknownCategoryIgnored(t *testing.T) {
	cats, rows, txns := foodFixture()
	txns = append(txns, core.Transaction{ID: 99, CategoryID: 404, Amount: core.Cents(1)})
	tree := Build(march, cats, rows, txns)
	assert.Equal(t, int64(70800), tree.Groups[0].Activity.Cents)
}

func TestWithBudget(t *testing.T) {
	cats, rows, txns := foodFixture()
	tree := Build(march, cats, rows, txns)

	next, line, err := tree.WithBudget(1, 2, core.Cents(60000))
	require.NoError(t, err)
	assert.Equal(t, int64(12900), line.Remaining.Cents)

	food := next.Groups[0]
	assert.Equal(t, int64(90000), food.Budget.Cents)
	assert.Equal(t, int64(70800), food.Activity.Cents)
	assert.Equal(t, int64(19200), food.Remaining.Cents)

	// Siblings, other groups and the original tree are untouched.
	assert.Equal(t, tree.Groups[0].Children[1], food.Children[1])
	assert.Equal(t, tree.Groups[1], next.Groups[1])
	assert.Equal(t, int64(80000), tree.Groups[0].Budget.Cents)
}

func TestWithBudget_UnknownIDs(t *testing.T) {
	cats, rows, txns := foodFixture()
	tree := Build(march, cats, rows, txns)

	tests := []struct {
		name          string
		parent, child int64
	}{
		{"unknown parent", 42, 2},
		{"unknown child", 1, 42},
		{"child of another parent", 4, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tree.WithBudget(tt.parent, tt.child, core.Cents(1))
			if !errors.Is(err, ErrCategoryNotFound) {
				t.Fatalf("expected ErrCategoryNotFound, got %v", err)
			}
		})
	}
}

func TestTotals(t *testing.T) {
	cats, rows, txns := foodFixture()
	tree := Build(march, cats, rows, txns)
	budget, activity := tree.Totals(core.Expense)
	assert.Equal(t, int64(200000), budget.Cents)
	assert.Equal(t, int64(70800), activity.Cents)

	budget, _ = tree.Totals(core.Income)
	assert.True(t, budget.IsZero())
}
