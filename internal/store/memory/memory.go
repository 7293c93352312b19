package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"budgetd/internal/core"
	"budgetd/internal/store"
)

var _ store.Backend = (*Store)(nil)

type rowKey struct {
	user     string
	category int64
	month    core.Month
}

// Store is an in-memory backend. It keeps categories in insertion order so the
// tree it returns is stable.
type Store struct {
	mu     sync.Mutex
	nextID int64
	cats   []core.Category // flat, Children unused
	rows   map[rowKey]core.BudgetRow
	txns   []core.Transaction
	seeded map[string]bool
}

func New() *Store {
	return &Store{
		rows:   make(map[rowKey]core.BudgetRow),
		seeded: make(map[string]bool),
	}
}

// NewWithSampleData returns a store pre-filled with a small placeholder budget
// for userID in month, handy for local runs without a database.
func NewWithSampleData(userID string, month core.Month) *Store {
	s := New()
	ctx := context.Background()
	food, _ := s.AddCategory(ctx, core.Category{UserID: userID, Name: "Food", Type: core.Expense})
	groceries, _ := s.AddCategory(ctx, core.Category{UserID: userID, Name: "Groceries", Type: core.Expense, ParentID: &food.ID})
	restaurants, _ := s.AddCategory(ctx, core.Category{UserID: userID, Name: "Restaurants", Type: core.Expense, ParentID: &food.ID})
	income, _ := s.AddCategory(ctx, core.Category{UserID: userID, Name: "Income", Type: core.Income})
	salary, _ := s.AddCategory(ctx, core.Category{UserID: userID, Name: "Salary", Type: core.Income, ParentID: &income.ID})

	_ = s.SaveBudgetRows(ctx, []core.BudgetRow{
		{UserID: userID, CategoryID: groceries.ID, Month: month, Assigned: core.Cents(50000)},
		{UserID: userID, CategoryID: restaurants.ID, Month: month, Assigned: core.Cents(30000)},
	})

	start, _, err := month.Bounds()
	if err != nil {
		start = time.Now().UTC()
	}
	for _, t := range []core.Transaction{
		{UserID: userID, CategoryID: groceries.ID, Amount: core.Cents(47100), Date: start.AddDate(0, 0, 2), Description: "Weekly shop"},
		{UserID: userID, CategoryID: restaurants.ID, Amount: core.Cents(23700), Date: start.AddDate(0, 0, 5), Description: "Dinner out"},
		{UserID: userID, CategoryID: salary.ID, Amount: core.Cents(350000), Date: start, Description: "Salary"},
	} {
		_, _ = s.AddTransaction(ctx, t)
	}
	s.seeded[userID] = true
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ListCategories returns parents with their children, both in insertion order.
func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parents []core.Category
	index := map[int64]int{}
	for _, c := range s.cats {
		if c.UserID != userID || !c.IsParent() {
			continue
		}
		index[c.ID] = len(parents)
		parents = append(parents, c)
	}
	for _, c := range s.cats {
		if c.UserID != userID || c.IsParent() {
			continue
		}
		if i, ok := index[*c.ParentID]; ok {
			parents[i].Children = append(parents[i].Children, c)
		}
	}
	return parents, nil
}

func (s *Store) AddDefaultCategories(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.seeded[userID] {
		s.mu.Unlock()
		return nil
	}
	s.seeded[userID] = true
	s.mu.Unlock()

	groups, err := core.DefaultCategories()
	if err != nil {
		return err
	}
	for _, g := range groups {
		parent, err := s.AddCategory(ctx, core.Category{UserID: userID, Name: g.Name, Type: g.Type})
		if err != nil {
			return fmt.Errorf("add default group %q: %w", g.Name, err)
		}
		for _, name := range g.Children {
			if _, err := s.AddCategory(ctx, core.Category{UserID: userID, Name: name, Type: g.Type, ParentID: &parent.ID}); err != nil {
				return fmt.Errorf("add default category %q: %w", name, err)
			}
		}
	}
	return nil
}

// AddCategory stores c. Children take their parent's type.
func (s *Store) AddCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ParentID != nil {
		parent, ok := s.find(c.UserID, *c.ParentID)
		if !ok {
			return core.Category{}, fmt.Errorf("parent %d: %w", *c.ParentID, store.ErrNotFound)
		}
		if !parent.IsParent() {
			return core.Category{}, core.ErrNestedCategory
		}
		c.Type = parent.Type
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID = s.id()
	c.Children = nil
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) find(userID string, id int64) (core.Category, bool) {
	for _, c := range s.cats {
		if c.ID == id && c.UserID == userID {
			return c, true
		}
	}
	return core.Category{}, false
}

func (s *Store) ListBudgetRows(_ context.Context, userID string, month core.Month) ([]core.BudgetRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.BudgetRow
	for k, r := range s.rows {
		if k.user == userID && k.month == month {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveBudgetRows(_ context.Context, rows []core.BudgetRow) error {
	for _, r := range rows {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("budget row for category %d: %w", r.CategoryID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		k := rowKey{user: r.UserID, category: r.CategoryID, month: r.Month}
		if existing, ok := s.rows[k]; ok {
			r.ID = existing.ID
		} else {
			r.ID = s.id()
		}
		s.rows[k] = r
	}
	return nil
}

func (s *Store) AddTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.find(t.UserID, t.CategoryID); !ok {
		return core.Transaction{}, fmt.Errorf("category %d: %w", t.CategoryID, store.ErrNotFound)
	}
	t.ID = s.id()
	s.txns = append(s.txns, t)
	return t, nil
}

// ListTransactions returns the month's transactions, newest first.
func (s *Store) ListTransactions(_ context.Context, userID string, month core.Month, page, pageSize int) (core.TransactionPage, error) {
	page, pageSize = store.NormalizePage(page, pageSize)
	s.mu.Lock()
	var matched []core.Transaction
	for _, t := range s.txns {
		if t.UserID == userID && core.MonthOf(t.Date) == month {
			matched = append(matched, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].ID > matched[j].ID
	})

	result := core.TransactionPage{Page: page, PageSize: pageSize, Total: len(matched)}
	from := (page - 1) * pageSize
	if from >= len(matched) {
		return result, nil
	}
	to := from + pageSize
	if to > len(matched) {
		to = len(matched)
	}
	result.Transactions = append([]core.Transaction(nil), matched[from:to]...)
	return result, nil
}

func (s *Store) ReadSummary(_ context.Context, userID string, month core.Month) (core.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := core.Summary{Month: month}
	for _, t := range s.txns {
		if t.UserID != userID || core.MonthOf(t.Date) != month {
			continue
		}
		c, ok := s.find(userID, t.CategoryID)
		if !ok {
			continue
		}
		switch c.Type {
		case core.Income:
			sum.Income = sum.Income.Add(t.Amount)
		case core.Expense:
			sum.Expenses = sum.Expenses.Add(t.Amount)
		}
	}
	return sum, nil
}
