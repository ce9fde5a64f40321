package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"spendbook/internal/aggregate"
	"spendbook/internal/export"
	"spendbook/internal/store"
)

func (a *app) exportCmd() *cobra.Command {
	var (
		qf  queryFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write expenses as CSV",
		Long: `Export writes the filtered and sorted expense list as CSV. Without --out the
file is named expenses-YYYY-MM-DD.csv in the current directory; --out - writes
to stdout.`,
		Args: cobra.NoArgs,
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

				if out == "-" {
					return export.WriteCSV(cmd.OutOrStdout(), expenses, snap.Categories)
				}
				if out == "" {
					out = export.Filename(a.now())
				}
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := export.WriteCSV(f, expenses, snap.Categories); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close export file: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d expenses to %s\n", len(expenses), out)
				return nil
			})
		},
	}
	qf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout")
	return cmd
}
