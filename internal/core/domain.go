package core

import (
	"strings"
)

type (
	Category struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
		Icon  string `json:"icon"`
	}

	Expense struct {
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		Amount      Money    `json:"amount"`
		Date        Date     `json:"date"`
		CategoryIDs []string `json:"categoryIds"`
		Description string   `json:"description,omitempty"`
		Images      [][]byte `json:"images,omitempty"` // base64 in JSON
	}

	// CategoryInput carries the fields of a category being created.
	CategoryInput struct {
		Name  string
		Color string
		Icon  string
	}

	// CategoryPatch is a partial category update; nil fields are left unchanged.
	CategoryPatch struct {
		Name  *string
		Color *string
		Icon  *string
	}

	ExpenseInput struct {
		Title       string
		Amount      Money
		Date        Date
		CategoryIDs []string
		Description string
		Images      [][]byte
	}

	// ExpensePatch is a partial expense update; nil fields are left unchanged.
	ExpensePatch struct {
		Title       *string
		Amount      *Money
		Date        *Date
		CategoryIDs *[]string
		Description *string
		Images      *[][]byte
	}
)

// Validate applies the input rules enforced at the boundary.
func (in CategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return Invalid("name", ErrEmptyName)
	}
	return nil
}

func (p CategoryPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return Invalid("name", ErrEmptyName)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.Color == nil && p.Icon == nil
}

// Apply returns c with the patch merged in. The id never changes.
func (p CategoryPatch) Apply(c Category) Category {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	return c
}

// Validate applies the input rules enforced at the boundary: a title, a
// positive amount, a date and at least one category.
func (in ExpenseInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return Invalid("title", ErrEmptyTitle)
	}
	if !in.Amount.IsPositive() {
		return Invalid("amount", ErrInvalidAmount)
	}
	if err := in.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if len(in.CategoryIDs) == 0 {
		return Invalid("categoryIds", ErrNoCategories)
	}
	return nil
}

func (p ExpensePatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return Invalid("title", ErrEmptyTitle)
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		return Invalid("amount", ErrInvalidAmount)
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return Invalid("date", err)
		}
	}
	if p.CategoryIDs != nil && len(*p.CategoryIDs) == 0 {
		return Invalid("categoryIds", ErrNoCategories)
	}
	return nil
}

func (p ExpensePatch) IsEmpty() bool {
	return p.Title == nil && p.Amount == nil && p.Date == nil &&
		p.CategoryIDs == nil && p.Description == nil && p.Images == nil
}

// Apply returns e with the patch merged in. Slices are copied so the result
// shares no memory with the patch.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.CategoryIDs != nil {
		e.CategoryIDs = cloneStrings(*p.CategoryIDs)
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Images != nil {
		e.Images = cloneImages(*p.Images)
	}
	return e
}

// Expense builds a new expense with the given id from the input.
func (in ExpenseInput) Expense(id string) Expense {
	return Expense{
		ID:          id,
		Title:       in.Title,
		Amount:      in.Amount,
		Date:        in.Date,
		CategoryIDs: cloneStrings(in.CategoryIDs),
		Description: in.Description,
		Images:      cloneImages(in.Images),
	}
}

func (in CategoryInput) Category(id string) Category {
	return Category{ID: id, Name: in.Name, Color: in.Color, Icon: in.Icon}
}

// HasCategory reports whether the expense is tagged with the category id.
func (e Expense) HasCategory(id string) bool {
	for _, cid := range e.CategoryIDs {
		if cid == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the expense.
func (e Expense) Clone() Expense {
	e.CategoryIDs = cloneStrings(e.CategoryIDs)
	e.Images = cloneImages(e.Images)
	return e
}

// CloneExpenses returns a copy whose entries share no memory with in.
func CloneExpenses(in []Expense) []Expense {
	if in == nil {
		return nil
	}
	out := make([]Expense, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

// cloneStrings never returns nil so categoryIds always encodes as an array.
func cloneStrings(in []string) []string {
	return append(make([]string, 0, len(in)), in...)
}

func cloneImages(in [][]byte) [][]byte {
	if in == nil {
		return nil
	}
	out := make([][]byte, len(in))
	for i, img := range in {
		out[i] = append([]byte(nil), img...)
	}
	return out
}
