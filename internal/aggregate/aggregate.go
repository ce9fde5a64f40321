// Package aggregate derives spending statistics from expense lists. Nothing
// here keeps state; inputs are never modified.
package aggregate

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"spendbook/internal/core"
)

// DateRange bounds are inclusive. A zero bound is open.
type DateRange struct {
	From core.Date
	To   core.Date
}

func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.From.Compare(r.To) > 0 {
		return core.Invalid("from", core.ErrInvalidDateRange)
	}
	return nil
}

func (r DateRange) Contains(d core.Date) bool {
	if !r.From.IsZero() && d.Compare(r.From) < 0 {
		return false
	}
	if !r.To.IsZero() && d.Compare(r.To) > 0 {
		return false
	}
	return true
}

// IsOpen reports whether neither bound is set.
func (r DateRange) IsOpen() bool {
	return r.From.IsZero() && r.To.IsZero()
}

func TotalAmount(expenses []core.Expense) core.Money {
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// FilterByDateRange keeps the expenses dated within r, in input order.
func FilterByDateRange(expenses []core.Expense, r DateRange) ([]core.Expense, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.IsOpen() {
		return append(make([]core.Expense, 0, len(expenses)), expenses...), nil
	}
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func MonthlyTotal(expenses []core.Expense, year int, month time.Month) core.Money {
	var total core.Money
	for _, e := range expenses {
		if e.Date.InMonth(year, month) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// PerCategoryTotals returns one entry per category, in category order. An
// expense tagged with several categories counts in full toward each, so the
// entries can add up to more than TotalAmount.
func PerCategoryTotals(expenses []core.Expense, categories []core.Category) []core.CategoryTotal {
	sums := make(map[string]core.Money, len(categories))
	for _, e := range expenses {
		seen := make(map[string]struct{}, len(e.CategoryIDs))
		for _, id := range e.CategoryIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			sums[id] = sums[id].Add(e.Amount)
		}
	}
	out := make([]core.CategoryTotal, 0, len(categories))
	for _, c := range categories {
		out = append(out, core.CategoryTotal{Category: c, Amount: sums[c.ID]})
	}
	return out
}

// MonthlySeries returns twelve points, January first.
func MonthlySeries(expenses []core.Expense, year int) []core.MonthPoint {
	var totals [12]core.Money
	for _, e := range expenses {
		if e.Date.IsZero() || e.Date.Year() != year {
			continue
		}
		m := e.Date.Month() - 1
		totals[m] = totals[m].Add(e.Amount)
	}
	out := make([]core.MonthPoint, 12)
	for i := range out {
		m := time.Month(i + 1)
		out[i] = core.MonthPoint{Month: m, Label: m.String()[:3], Total: totals[i]}
	}
	return out
}

// SearchExpenses keeps expenses whose title or description contains term,
// ignoring case. An empty term keeps everything.
func SearchExpenses(expenses []core.Expense, term string) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	if term == "" {
		return append(out, expenses...)
	}
	fold := cases.Fold()
	needle := fold.String(term)
	for _, e := range expenses {
		if strings.Contains(fold.String(e.Title), needle) ||
			strings.Contains(fold.String(e.Description), needle) {
			out = append(out, e)
		}
	}
	return out
}
