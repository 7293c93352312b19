package google

import (
	"fmt"
	"strconv"
	"strings"

	"budgetd/internal/core"
	ports "budgetd/internal/sheets"
)

// cellRow is the A:F line for a cell.
func cellRow(c ports.BudgetCell) []any {
	return []any{
		strconv.FormatInt(c.CategoryID, 10),
		c.Group,
		c.Category,
		c.Assigned.String(),
		c.Actual.String(),
		c.Remaining().String(),
	}
}

// findRow returns the 1-based sheet row whose column A holds categoryID, or 0.
// Row 1 is the header and is never matched.
func findRow(colA [][]any, categoryID int64) int {
	want := strconv.FormatInt(categoryID, 10)
	for i, row := range colA {
		if i == 0 || len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i + 1
		}
	}
	return 0
}

// parseCells reads data rows (header excluded). Rows without a numeric id are
// skipped; a malformed amount is an error.
func parseCells(month core.Month, values [][]any) ([]ports.BudgetCell, error) {
	var out []ports.BudgetCell
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64)
		if err != nil {
			continue
		}
		cell := ports.BudgetCell{
			Month:      month,
			CategoryID: id,
			Group:      col(row, 1),
			Category:   col(row, 2),
		}
		if cell.Assigned, err = parseAmount(col(row, 3)); err != nil {
			return nil, fmt.Errorf("row %d assigned: %w", i+2, err)
		}
		if cell.Actual, err = parseAmount(col(row, 4)); err != nil {
			return nil, fmt.Errorf("row %d activity: %w", i+2, err)
		}
		out = append(out, cell)
	}
	return out, nil
}

func col(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

// parseAmount accepts what USER_ENTERED may turn a number into, including a
// thousands separator and a currency sign. Empty means zero.
func parseAmount(s string) (core.Money, error) {
	s = strings.TrimSpace(strings.TrimLeft(s, "$€£ "))
	if s == "" {
		return core.Money{}, nil
	}
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	}
	return core.ParseMoney(s)
}
