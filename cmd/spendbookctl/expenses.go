package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"spendbook/internal/aggregate"
	"spendbook/internal/core"
	"spendbook/internal/store"
)

func (a *app) expenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "expense",
		Aliases: []string{"expenses", "exp"},
		Short:   "Manage expenses",
	}
	cmd.AddCommand(a.expenseListCmd())
	cmd.AddCommand(a.expenseAddCmd())
	cmd.AddCommand(a.expenseUpdateCmd())
	cmd.AddCommand(a.expenseDeleteCmd())
	return cmd
}

// queryFlags are shared by expense list and export.
type queryFlags struct {
	term, from, to, sort, order string
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&q.term, "query", "q", "", "search title and description")
	cmd.Flags().StringVar(&q.from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&q.to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&q.sort, "sort", "date", "sort key: date, amount or title")
	cmd.Flags().StringVar(&q.order, "order", "desc", "sort order: asc or desc")
}

func (q *queryFlags) query() (aggregate.ExpenseQuery, error) {
	rng, err := parseRange(q.from, q.to)
	if err != nil {
		return aggregate.ExpenseQuery{}, err
	}
	key, err := aggregate.ParseSortKey(q.sort)
	if err != nil {
		return aggregate.ExpenseQuery{}, err
	}
	order, err := aggregate.ParseSortOrder(q.order)
	if err != nil {
		return aggregate.ExpenseQuery{}, err
	}
	return aggregate.ExpenseQuery{Term: q.term, Range: rng, Sort: key, Order: order}, nil
}

func parseRange(from, to string) (aggregate.DateRange, error) {
	var rng aggregate.DateRange
	var err error
	if from != "" {
		if rng.From, err = core.ParseDate(from); err != nil {
			return rng, core.Invalid("from", err)
		}
	}
	if to != "" {
		if rng.To, err = core.ParseDate(to); err != nil {
			return rng, core.Invalid("to", err)
		}
	}
	return rng, rng.Validate()
}

func (a *app) expenseListCmd() *cobra.Command {
	var qf queryFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := qf.query()
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(st *store.Store) error {
				snap := st.Snapshot()
				expenses, err := aggregate.Query(snap.Expenses, q)
				if err != nil {
					return err
				}
				if a.asJSON {
					if expenses == nil {
						expenses = []core.Expense{}
					}
					return writeJSON(cmd.OutOrStdout(), expenses)
				}
				return printExpenses(cmd.OutOrStdout(), expenses, snap.Categories, aggregate.TotalAmount(expenses))
			})
		},
	}
	qf.register(cmd)
	return cmd
}

// expenseFlags hold the raw flag values of add and update.
type expenseFlags struct {
	title, amount, date, description string
	categories                       []string
}

func (f *expenseFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "what the money was spent on")
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", "amount, e.g. 12.50 or 12,50")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.description, "description", "", "free text note")
	cmd.Flags().StringSliceVarP(&f.categories, "category", "c", nil, "category id or name, repeatable")
}

func (a *app) expenseAddCmd() *cobra.Command {
	var f expenseFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		Example: `  spendbookctl expense add -t Coffee -a 4.50 -c Food
  spendbookctl expense add -t "Train ticket" -a 12 -d 2025-01-15 -c Transport -c 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := core.ExpenseInput{
				Title:       strings.TrimSpace(f.title),
				Description: strings.TrimSpace(f.description),
				Date:        core.DateOf(a.now()),
			}
			var err error
			if in.Amount, err = core.ParseAmount(f.amount); err != nil {
				return core.Invalid("amount", err)
			}
			if f.date != "" {
				if in.Date, err = core.ParseDate(f.date); err != nil {
					return core.Invalid("date", err)
				}
			}
			return a.withStore(cmd, func(st *store.Store) error {
				if in.CategoryIDs, err = resolveCategories(st, f.categories); err != nil {
					return err
				}
				if err := in.Validate(); err != nil {
					return err
				}
				e, err := st.AddExpense(cmd.Context(), in)
				if err != nil {
					return err
				}
				return a.printExpense(cmd, "Recorded", e)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) expenseUpdateCmd() *cobra.Command {
	var f expenseFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of an expense; only the flags given are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch core.ExpensePatch
			changed := cmd.Flags().Changed
			if changed("title") {
				t := strings.TrimSpace(f.title)
				patch.Title = &t
			}
			if changed("amount") {
				m, err := core.ParseAmount(f.amount)
				if err != nil {
					return core.Invalid("amount", err)
				}
				patch.Amount = &m
			}
			if changed("date") {
				d, err := core.ParseDate(f.date)
				if err != nil {
					return core.Invalid("date", err)
				}
				patch.Date = &d
			}
			if changed("description") {
				d := strings.TrimSpace(f.description)
				patch.Description = &d
			}
			return a.withStore(cmd, func(st *store.Store) error {
				if changed("category") {
					ids, err := resolveCategories(st, f.categories)
					if err != nil {
						return err
					}
					patch.CategoryIDs = &ids
				}
				if patch.IsEmpty() {
					return fmt.Errorf("nothing to update: pass at least one field flag")
				}
				if err := patch.Validate(); err != nil {
					return err
				}
				e, err := st.UpdateExpense(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				return a.printExpense(cmd, "Updated", e)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) expenseDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				if err := st.DeleteExpense(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted expense %s\n", args[0])
				return nil
			})
		},
	}
}

// resolveCategories maps each reference, an id or a case-insensitive name,
// to a category id.
func resolveCategories(st *store.Store, refs []string) ([]string, error) {
	cats := st.Categories()
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		id := ""
		for _, c := range cats {
			if c.ID == ref || strings.EqualFold(c.Name, ref) {
				id = c.ID
				break
			}
		}
		if id == "" {
			return nil, core.Invalid("category", fmt.Errorf("unknown category %q", ref))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *app) printExpense(cmd *cobra.Command, verb string, e core.Expense) error {
	if a.asJSON {
		return writeJSON(cmd.OutOrStdout(), e)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s expense %s: %s %s on %s\n", verb, e.ID, e.Title, e.Amount, e.Date)
	return err
}
