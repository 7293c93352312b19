package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-01", true},
		{"2025-12", true},
		{" 2024-02 ", true},
		{"2025-13", false},
		{"2025-1", false},
		{"january", false},
	}
	for i, tc := range cases {
		m, err := ParseMonth(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("case %d expected error, got %q", i, m)
			}
			if !errors.Is(err, ErrInvalidMonth) {
				t.Fatalf("case %d expected ErrInvalidMonth, got %v", i, err)
			}
		}
	}

	m, err := ParseMonth("")
	if err != nil || m != CurrentMonth(time.Now()) {
		t.Fatalf("empty month should default to current, got %q err=%v", m, err)
	}
}

func TestMonthBounds(t *testing.T) {
	start, end, err := Month("2024-12").Bounds()
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if start != time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected start %v", start)
	}
	if end != time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected end %v", end)
	}
	if MonthOf(time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)) != "2025-03" {
		t.Fatalf("MonthOf mismatch")
	}
}

func TestCategoryValidate(t *testing.T) {
	parent := int64(1)
	good := Category{Name: "Food", Type: Expense}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Category{
		{Name: " ", Type: Expense},
		{Name: "x", Type: "savings"},
		{Name: "x", Type: Expense, ParentID: &parent, Children: []Category{{Name: "y", Type: Expense}}},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestBudgetRowValidate(t *testing.T) {
	if err := (BudgetRow{CategoryID: 1, Month: "2025-01", Assigned: Cents(0)}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (BudgetRow{CategoryID: 1, Month: "2025-01", Assigned: Cents(-1)}).Validate(); !errors.Is(err, ErrNegativeBudget) {
		t.Fatalf("expected ErrNegativeBudget, got %v", err)
	}
	if err := (BudgetRow{Month: "2025-01"}).Validate(); !errors.Is(err, ErrMissingCategory) {
		t.Fatalf("expected ErrMissingCategory, got %v", err)
	}
	if err := (BudgetRow{CategoryID: 1, Month: "bad"}).Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{CategoryID: 3, Amount: Cents(-250), Date: time.Now()}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Transaction{
		{Amount: Cents(1), Date: time.Now()},
		{CategoryID: 3, Amount: Cents(1)},
		{CategoryID: 3, Date: time.Now()},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestSummaryReadyToAssign(t *testing.T) {
	s := Summary{Income: Cents(350000), Expenses: Cents(120050)}
	if got := s.ReadyToAssign(); got.Cents != 229950 {
		t.Fatalf("ready to assign = %d, want 229950", got.Cents)
	}
	s = Summary{Income: Cents(100), Expenses: Cents(300)}
	if got := s.ReadyToAssign(); got.Cents != -200 {
		t.Fatalf("ready to assign = %d, want -200", got.Cents)
	}
}

func TestDefaultCategories(t *testing.T) {
	groups, err := DefaultCategories()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if len(groups) == 0 {
		t.Fatalf("expected default groups")
	}
	for _, g := range groups {
		if len(g.Children) == 0 {
			t.Fatalf("group %q has no children", g.Name)
		}
	}
}
