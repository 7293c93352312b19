package http

import (
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"

	"budgetd/internal/budget"
	"budgetd/internal/core"
	applog "budgetd/internal/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleExportBudget renders the month's tree as an XLSX workbook.
func (s *Server) handleExportBudget(w http.ResponseWriter, r *http.Request) {
	user, month, ok := request(w, r)
	if !ok {
		return
	}
	_, view := s.budgets.Open(r.Context(), user, month)
	if !view.Loaded {
		writeError(w, r, http.StatusServiceUnavailable, "budget is not available yet, try again shortly")
		return
	}

	f, err := budgetWorkbook(month, view)
	if err != nil {
		writeDomainError(w, r, "export_budget", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="budget-%s.xlsx"`, month))
	if err := f.Write(w); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to stream workbook",
			applog.FieldMonth, string(month), applog.FieldError, err)
	}
}

// budgetWorkbook lays out one sheet: a header, each group followed by its
// children, then Ready to Assign.
func budgetWorkbook(month core.Month, view budget.View) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Budget " + string(month)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#2D3436"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "#636E72", Style: 2}},
	})
	groupStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#DFE6E9"}, Pattern: 1},
		NumFmt: 4, // #,##0.00
	})
	numberStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4})

	if err := f.SetSheetRow(sheet, "A1", &[]any{"Category", "Budget", "Activity", "Remaining"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	_ = f.SetCellStyle(sheet, "A1", "D1", headerStyle)

	row := 2
	put := func(name string, budget, activity, remaining core.Money, style int) error {
		cell := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(sheet, cell, &[]any{name, budget.Float(), activity.Float(), remaining.Float()}); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		_ = f.SetCellStyle(sheet, cell, fmt.Sprintf("D%d", row), style)
		row++
		return nil
	}

	for _, g := range view.Tree.Groups {
		if err := put(g.Name, g.Budget, g.Activity, g.Remaining, groupStyle); err != nil {
			f.Close()
			return nil, err
		}
		for _, l := range g.Children {
			if err := put("  "+l.Name, l.Budget, l.Activity, l.Remaining, numberStyle); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	row++
	label := fmt.Sprintf("A%d", row)
	_ = f.SetCellValue(sheet, label, "Ready to Assign")
	_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), view.ReadyToAssign.Float())
	_ = f.SetCellStyle(sheet, label, fmt.Sprintf("B%d", row), groupStyle)
	_ = f.SetColWidth(sheet, "A", "A", 32)
	_ = f.SetColWidth(sheet, "B", "D", 14)

	return f, nil
}
