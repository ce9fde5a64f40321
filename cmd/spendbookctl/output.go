package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"spendbook/internal/core"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	rule := make([]string, len(headers))
	for i, h := range headers {
		rule[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(rule, "\t"))
	return tw
}

func printCategories(w io.Writer, cats []core.Category) error {
	tw := newTable(w, "ID", "NAME", "COLOR", "ICON")
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Color, c.Icon)
	}
	return tw.Flush()
}

func printExpenses(w io.Writer, expenses []core.Expense, cats []core.Category, total core.Money) error {
	idx := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		idx[c.ID] = c
	}
	tw := newTable(w, "ID", "DATE", "TITLE", "AMOUNT", "CATEGORIES")
	for _, e := range expenses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date, e.Title, e.Amount, strings.Join(core.CategoryNames(e, idx), ", "))
	}
	fmt.Fprintf(tw, "\t\tTOTAL (%d)\t%s\t\n", len(expenses), total)
	return tw.Flush()
}

func printStats(w io.Writer, s core.DashboardStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total\t%s\n", s.Total)
	fmt.Fprintf(tw, "This month\t%s\n", s.ThisMonth)
	fmt.Fprintf(tw, "Daily average\t%s\n", s.DailyAvg)
	fmt.Fprintf(tw, "Expenses\t%d\n", s.Count)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "CATEGORY\tAMOUNT")
	for _, ct := range s.ByCategory {
		fmt.Fprintf(tw, "%s %s\t%s\n", ct.Category.Icon, ct.Category.Name, ct.Amount)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "MONTH (%d)\tTOTAL\n", s.Year)
	for _, p := range s.Monthly {
		fmt.Fprintf(tw, "%s\t%s\n", p.Label, p.Total)
	}
	return tw.Flush()
}
