package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"spendbook/internal/core"
)

// ExpenseQuery is the list view: search, then date range, then sort.
type ExpenseQuery struct {
	Term  string
	Range DateRange
	Sort  SortKey
	Order SortOrder
}

func Query(expenses []core.Expense, q ExpenseQuery) ([]core.Expense, error) {
	filtered, err := FilterByDateRange(SearchExpenses(expenses, q.Term), q.Range)
	if err != nil {
		return nil, err
	}
	key, order := q.Sort, q.Order
	if key == "" {
		key = SortByDate
	}
	if order == "" {
		order = Desc
	}
	return SortExpenses(filtered, key, order), nil
}

// Dashboard summarizes the expenses within r. The month and series figures
// use the calendar of now.
func Dashboard(snap core.Snapshot, r DateRange, now time.Time) (core.DashboardStats, error) {
	filtered, err := FilterByDateRange(snap.Expenses, r)
	if err != nil {
		return core.DashboardStats{}, err
	}
	year, month := now.Year(), now.Month()
	thisMonth := MonthlyTotal(filtered, year, month)
	return core.DashboardStats{
		Total:      TotalAmount(filtered),
		ThisMonth:  thisMonth,
		DailyAvg:   dailyAverage(thisMonth, year, month),
		Count:      len(filtered),
		Year:       year,
		ByCategory: PerCategoryTotals(filtered, snap.Categories),
		Monthly:    MonthlySeries(filtered, year),
	}, nil
}

func dailyAverage(total core.Money, year int, month time.Month) core.Money {
	days := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	avg := total.Decimal().Div(decimal.NewFromInt(int64(days)))
	m, err := core.MoneyFromDecimal(avg)
	if err != nil {
		return core.Money{}
	}
	return m
}
