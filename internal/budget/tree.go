// Package budget folds categories, monthly budget rows and transactions into
// the editable budget tree, and keeps that tree in sync with the backend.
package budget

import (
	"errors"
	"fmt"

	"budgetd/internal/core"
)

// ErrCategoryNotFound is returned for edits to a parent or child not in the tree.
var ErrCategoryNotFound = errors.New("category not found")

// Line is a child category with its computed figures.
type Line struct {
	ID        int64
	ParentID  int64
	Name      string
	Type      core.CategoryType
	Budget    core.Money
	Activity  core.Money
	Remaining core.Money
}

// Group is a parent category. Its figures are always sums over Children.
type Group struct {
	ID        int64
	Name      string
	Type      core.CategoryType
	Budget    core.Money
	Activity  core.Money
	Remaining core.Money
	Children  []Line
}

// Tree is the month's budget view. Values are never mutated in place; edits
// return a new Tree sharing untouched groups.
type Tree struct {
	Month  core.Month
	Groups []Group
	// DuplicateRows lists categories that had more than one budget row.
	DuplicateRows []int64
}

// Build computes the tree for month. It is a pure function of its inputs:
// parent order and child order follow categories, and the order of rows and
// transactions does not matter.
//
// When several budget rows exist for one category the row with the highest ID
// wins and the category is reported in DuplicateRows.
func Build(month core.Month, categories []core.Category, rows []core.BudgetRow, txns []core.Transaction) Tree {
	assigned, dups := indexRows(rows)
	activity := make(map[int64]int64, len(txns))
	for _, t := range txns {
		activity[t.CategoryID] += t.Amount.Cents
	}

	tree := Tree{Month: month, DuplicateRows: dups, Groups: make([]Group, 0, len(categories))}
	for _, parent := range categories {
		g := Group{ID: parent.ID, Name: parent.Name, Type: parent.Type, Children: make([]Line, 0, len(parent.Children))}
		for _, child := range parent.Children {
			budget := core.Cents(assigned[child.ID].Assigned.Cents)
			act := core.Cents(activity[child.ID])
			g.Children = append(g.Children, Line{
				ID:        child.ID,
				ParentID:  parent.ID,
				Name:      child.Name,
				Type:      child.Type,
				Budget:    budget,
				Activity:  act,
				Remaining: budget.Sub(act),
			})
		}
		g.total()
		tree.Groups = append(tree.Groups, g)
	}
	return tree
}

func indexRows(rows []core.BudgetRow) (map[int64]core.BudgetRow, []int64) {
	byCat := make(map[int64]core.BudgetRow, len(rows))
	var dups []int64
	seenDup := map[int64]bool{}
	for _, r := range rows {
		prev, ok := byCat[r.CategoryID]
		if !ok {
			byCat[r.CategoryID] = r
			continue
		}
		if !seenDup[r.CategoryID] {
			seenDup[r.CategoryID] = true
			dups = append(dups, r.CategoryID)
		}
		if r.ID > prev.ID {
			byCat[r.CategoryID] = r
		}
	}
	return byCat, dups
}

// total re-sums the group's figures from its children.
func (g *Group) total() {
	var budget, activity core.Money
	for _, c := range g.Children {
		budget = budget.Add(c.Budget)
		activity = activity.Add(c.Activity)
	}
	g.Budget = budget
	g.Activity = activity
	g.Remaining = budget.Sub(activity)
}

// WithBudget returns a copy of the tree where one child's budget is value.
// Only that child and its parent's totals change.
func (t Tree) WithBudget(parentID, childID int64, value core.Money) (Tree, Line, error) {
	gi := t.groupIndex(parentID)
	if gi < 0 {
		return t, Line{}, fmt.Errorf("parent %d: %w", parentID, ErrCategoryNotFound)
	}
	ci := -1
	for i, c := range t.Groups[gi].Children {
		if c.ID == childID {
			ci = i
			break
		}
	}
	if ci < 0 {
		return t, Line{}, fmt.Errorf("child %d of parent %d: %w", childID, parentID, ErrCategoryNotFound)
	}

	g := t.Groups[gi]
	g.Children = append([]Line(nil), g.Children...)
	line := g.Children[ci]
	line.Budget = value
	line.Remaining = value.Sub(line.Activity)
	g.Children[ci] = line
	g.total()

	out := t
	out.Groups = append([]Group(nil), t.Groups...)
	out.Groups[gi] = g
	return out, line, nil
}

func (t Tree) groupIndex(id int64) int {
	for i, g := range t.Groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the child line for childID.
func (t Tree) Find(childID int64) (Line, bool) {
	for _, g := range t.Groups {
		for _, c := range g.Children {
			if c.ID == childID {
				return c, true
			}
		}
	}
	return Line{}, false
}

// Totals sums every group of the given type.
func (t Tree) Totals(typ core.CategoryType) (budget, activity core.Money) {
	for _, g := range t.Groups {
		if g.Type != typ {
			continue
		}
		budget = budget.Add(g.Budget)
		activity = activity.Add(g.Activity)
	}
	return budget, activity
}
