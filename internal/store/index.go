package store

import (
	"spendbook/internal/core"
)

// shallowCopy gives the snapshot fresh top-level slices. Element slices are
// shared, so writers must replace an expense rather than edit its slices.
func shallowCopy(s core.Snapshot) core.Snapshot {
	return core.Snapshot{
		Expenses:   append(make([]core.Expense, 0, len(s.Expenses)+1), s.Expenses...),
		Categories: append(make([]core.Category, 0, len(s.Categories)+1), s.Categories...),
	}
}

func indexOfCategory(cs []core.Category, id string) int {
	for i, c := range cs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func indexOfExpense(es []core.Expense, id string) int {
	for i, e := range es {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func categoryIDSet(cs []core.Category) map[string]struct{} {
	set := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		set[c.ID] = struct{}{}
	}
	return set
}

func expenseIDSet(es []core.Expense) map[string]struct{} {
	set := make(map[string]struct{}, len(es))
	for _, e := range es {
		set[e.ID] = struct{}{}
	}
	return set
}

// checkCategoryRefs rejects ids that do not name one of cs. An empty list is
// allowed.
func checkCategoryRefs(cs []core.Category, ids []string) error {
	for _, id := range ids {
		if indexOfCategory(cs, id) < 0 {
			return core.Invalid("categoryIds", core.ErrUnknownCategory)
		}
	}
	return nil
}
