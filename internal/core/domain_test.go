package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, time.January, 10), d)

	d, err = ParseDate("2025-01-10T23:15:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10", d.String())

	_, err = ParseDate("10/01/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2025, time.March, 7))
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-07"`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-07"`), &d))
	assert.True(t, d.InMonth(2025, time.March))

	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.True(t, d.IsZero())
}

func TestExpenseInputValidate(t *testing.T) {
	good := ExpenseInput{
		Title:       "Coffee",
		Amount:      Money{Cents: 450},
		Date:        NewDate(2025, time.January, 10),
		CategoryIDs: []string{"1"},
	}
	require.NoError(t, good.Validate())

	tests := []struct {
		name  string
		mut   func(*ExpenseInput)
		field string
		err   error
	}{
		{"empty title", func(in *ExpenseInput) { in.Title = "  " }, "title", ErrEmptyTitle},
		{"zero amount", func(in *ExpenseInput) { in.Amount = Money{} }, "amount", ErrInvalidAmount},
		{"zero date", func(in *ExpenseInput) { in.Date = Date{} }, "date", ErrInvalidDate},
		{"no categories", func(in *ExpenseInput) { in.CategoryIDs = nil }, "categoryIds", ErrNoCategories},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := good
			tt.mut(&in)
			err := in.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCategoryPatchApplyKeepsID(t *testing.T) {
	c := Category{ID: "1", Name: "Food", Color: "#FF6B6B", Icon: "🍔"}
	got := CategoryPatch{Name: strPtr("Groceries")}.Apply(c)
	assert.Equal(t, Category{ID: "1", Name: "Groceries", Color: "#FF6B6B", Icon: "🍔"}, got)

	assert.Error(t, CategoryPatch{Name: strPtr("")}.Validate())
	assert.True(t, CategoryPatch{}.IsEmpty())
}

func TestExpensePatchApplyCopiesSlices(t *testing.T) {
	ids := []string{"2", "3"}
	e := Expense{ID: "x", Title: "Bus", CategoryIDs: []string{"1"}}
	got := ExpensePatch{CategoryIDs: &ids}.Apply(e)
	ids[0] = "mutated"
	assert.Equal(t, []string{"2", "3"}, got.CategoryIDs)
	assert.Equal(t, "x", got.ID)
}

func TestSnapshotCheckAndPrune(t *testing.T) {
	s := DefaultSnapshot()
	s.Expenses = append(s.Expenses, Expense{ID: "a", CategoryIDs: []string{"1", "ghost", "2"}})
	require.NoError(t, s.Check())

	assert.Equal(t, 1, s.PruneDanglingRefs())
	assert.Equal(t, []string{"1", "2"}, s.Expenses[0].CategoryIDs)

	s.Categories = append(s.Categories, Category{ID: "1"})
	assert.ErrorIs(t, s.Check(), ErrDuplicateID)
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	s := DefaultSnapshot()
	s.Expenses = append(s.Expenses, Expense{
		ID:          "e1",
		Title:       "Coffee",
		Amount:      Money{Cents: 450},
		Date:        NewDate(2025, time.January, 10),
		CategoryIDs: []string{"1"},
		Description: "flat white",
		Images:      [][]byte{{0x89, 'P', 'N', 'G'}},
	})

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var back Snapshot
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, s, back)
}
