package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"spendbook/internal/core"
)

type SortKey string

const (
	SortByDate   SortKey = "date"
	SortByAmount SortKey = "amount"
	SortByTitle  SortKey = "title"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSortKey accepts date, amount or title; empty means date.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortByDate, nil
	case SortByDate, SortByAmount, SortByTitle:
		return k, nil
	default:
		return "", core.Invalid("sort", fmt.Errorf("unknown sort key %q", s))
	}
}

// ParseSortOrder accepts asc or desc; empty means desc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Desc, nil
	case Asc, Desc:
		return o, nil
	default:
		return "", core.Invalid("order", fmt.Errorf("unknown sort order %q", s))
	}
}

// SortExpenses returns a sorted copy. The sort is stable in both directions:
// entries that compare equal keep their input order.
func SortExpenses(expenses []core.Expense, key SortKey, order SortOrder) []core.Expense {
	out := append(make([]core.Expense, 0, len(expenses)), expenses...)
	cmp := comparator(key)
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if order == Asc {
			return c < 0
		}
		return c > 0
	})
	return out
}

func comparator(key SortKey) func(a, b core.Expense) int {
	switch key {
	case SortByAmount:
		return func(a, b core.Expense) int {
			switch {
			case a.Amount.Cents < b.Amount.Cents:
				return -1
			case a.Amount.Cents > b.Amount.Cents:
				return 1
			}
			return 0
		}
	case SortByTitle:
		return func(a, b core.Expense) int {
			return strings.Compare(a.Title, b.Title)
		}
	default:
		return func(a, b core.Expense) int {
			return a.Date.Compare(b.Date)
		}
	}
}
