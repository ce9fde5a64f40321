package main

import (
	"github.com/spf13/cobra"

	"spendbook/internal/aggregate"
	"spendbook/internal/store"
)

func (a *app) statsCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show totals, per-category sums and the monthly series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng, err := parseRange(from, to)
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(st *store.Store) error {
				stats, err := aggregate.Dashboard(st.Snapshot(), rng, a.now())
				if err != nil {
					return err
				}
				if a.asJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				return printStats(cmd.OutOrStdout(), stats)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	return cmd
}
