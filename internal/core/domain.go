package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"
)

// monthLayout is the wire and storage format of a budget month.
const monthLayout = "2006-01"

type (
	CategoryType string

	// Month identifies an aggregation period as "YYYY-MM".
	Month string

	Money struct {
		Cents int64
	}

	Category struct {
		ID       int64
		UserID   string
		Name     string
		Type     CategoryType
		ParentID *int64 // nil for parents
		Children []Category
	}

	BudgetRow struct {
		ID         int64
		UserID     string
		CategoryID int64
		Month      Month
		Assigned   Money
		Actual     Money
	}

	Transaction struct {
		ID          int64
		UserID      string
		CategoryID  int64
		Amount      Money // signed
		Date        time.Time
		Description string
	}

	// TransactionPage is one page of a user's transactions for a month.
	TransactionPage struct {
		Transactions []Transaction
		Page         int
		PageSize     int
		Total        int
	}

	Summary struct {
		Month    Month
		Income   Money
		Expenses Money
	}
)

var (
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrNegativeBudget      = errors.New("budget cannot be negative")
	ErrEmptyName           = errors.New("empty category name")
	ErrInvalidCategoryType = errors.New("invalid category type")
	ErrNestedCategory      = errors.New("categories can only be nested one level")
	ErrMissingCategory     = errors.New("missing category")
)

// ParseMonth validates a "YYYY-MM" key. An empty string yields the current month.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CurrentMonth(time.Now()), nil
	}
	if _, err := time.Parse(monthLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month(s), nil
}

// CurrentMonth returns the month containing t.
func CurrentMonth(t time.Time) Month {
	return Month(t.Format(monthLayout))
}

// MonthOf returns the month a date belongs to.
func MonthOf(t time.Time) Month {
	return CurrentMonth(t)
}

// Bounds returns the half-open interval [start, end) covered by the month.
func (m Month) Bounds() (time.Time, time.Time, error) {
	start, err := time.Parse(monthLayout, string(m))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, string(m))
	}
	return start, start.AddDate(0, 1, 0), nil
}

func (m Month) String() string {
	return string(m)
}

func (t CategoryType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCategoryType, string(t))
	}
}

// IsParent reports whether the category sits at the top of the tree.
func (c Category) IsParent() bool {
	return c.ParentID == nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("category name too long (max 100 characters)")
	}
	if err := c.Type.Validate(); err != nil {
		return err
	}
	if len(c.Children) > 0 && !c.IsParent() {
		return ErrNestedCategory
	}
	return nil
}

func (r BudgetRow) Validate() error {
	if r.CategoryID == 0 {
		return ErrMissingCategory
	}
	if _, _, err := r.Month.Bounds(); err != nil {
		return err
	}
	if r.Assigned.IsNegative() {
		return ErrNegativeBudget
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.CategoryID == 0 {
		return ErrMissingCategory
	}
	if t.Date.IsZero() {
		return errors.New("transaction date cannot be zero")
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

// ReadyToAssign is the unallocated money for the month.
func (s Summary) ReadyToAssign() Money {
	return s.Income.Sub(s.Expenses)
}
