package core

import (
	"fmt"
)

// Snapshot is the full value of the category and expense collections at one
// point in time. It is also the persisted record layout.
type Snapshot struct {
	Expenses   []Expense  `json:"expenses"`
	Categories []Category `json:"categories"`
}

// DefaultCategories returns the seed categories used for a fresh store.
func DefaultCategories() []Category {
	return []Category{
		{ID: "1", Name: "Food", Color: "#FF6B6B", Icon: "🍔"},
		{ID: "2", Name: "Transport", Color: "#4ECDC4", Icon: "🚗"},
		{ID: "3", Name: "Entertainment", Color: "#FFE66D", Icon: "🎬"},
		{ID: "4", Name: "Shopping", Color: "#95E1D3", Icon: "🛍️"},
		{ID: "5", Name: "Utilities", Color: "#A8E6CF", Icon: "💡"},
	}
}

// DefaultSnapshot returns the seed state: default categories, no expenses.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Expenses:   []Expense{},
		Categories: DefaultCategories(),
	}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Expenses:   CloneExpenses(s.Expenses),
		Categories: append(make([]Category, 0, len(s.Categories)), s.Categories...),
	}
}

// Check verifies that ids are unique within each collection.
func (s Snapshot) Check() error {
	seen := make(map[string]struct{}, len(s.Categories))
	for _, c := range s.Categories {
		if _, ok := seen[c.ID]; ok {
			return fmt.Errorf("category %q: %w", c.ID, ErrDuplicateID)
		}
		seen[c.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(s.Expenses))
	for _, e := range s.Expenses {
		if _, ok := seen[e.ID]; ok {
			return fmt.Errorf("expense %q: %w", e.ID, ErrDuplicateID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

// PruneDanglingRefs removes categoryIds that reference no existing category
// and returns how many references were dropped. Expenses are modified in
// place, so call it on a snapshot nobody else holds.
func (s *Snapshot) PruneDanglingRefs() int {
	known := s.CategoryIndex()
	pruned := 0
	for i := range s.Expenses {
		ids := s.Expenses[i].CategoryIDs
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if _, ok := known[id]; ok {
				kept = append(kept, id)
				continue
			}
			pruned++
		}
		s.Expenses[i].CategoryIDs = kept
	}
	return pruned
}

// CategoryIndex maps category ids to categories.
func (s Snapshot) CategoryIndex() map[string]Category {
	idx := make(map[string]Category, len(s.Categories))
	for _, c := range s.Categories {
		idx[c.ID] = c
	}
	return idx
}

// CategoryNames resolves the expense's category ids to names, skipping ids
// that are not in the index.
func CategoryNames(e Expense, idx map[string]Category) []string {
	names := make([]string, 0, len(e.CategoryIDs))
	for _, id := range e.CategoryIDs {
		if c, ok := idx[id]; ok {
			names = append(names, c.Name)
		}
	}
	return names
}
